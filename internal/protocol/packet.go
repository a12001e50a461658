package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// PacketKind tags the binary packet union carried inside a frame body.
type PacketKind byte

const (
	KindHandshake PacketKind = iota + 1
	KindHandshakeResponse
	KindList
	KindChunk
	KindProgress
)

// Packet is implemented by every member of the binary packet union.
type Packet interface {
	Kind() PacketKind
}

// Handshake is sent by the sender once a peer joins its room.
type Handshake struct {
	PublicKey []byte
	Signature []byte
}

func (Handshake) Kind() PacketKind { return KindHandshake }

// HandshakeResponse is sent by the receiver in reply to a Handshake.
type HandshakeResponse struct {
	PublicKey []byte
	Signature []byte
}

func (HandshakeResponse) Kind() PacketKind { return KindHandshakeResponse }

// FileEntry describes one file inside a List packet.
type FileEntry struct {
	Index uint32
	Name  string
	Size  uint64
}

// List enumerates the files the sender is about to stream, in the
// order the chunk pump will emit them.
type List struct {
	Files []FileEntry
}

func (List) Kind() PacketKind { return KindList }

// Chunk carries one slice of file bytes, sequenced per-file.
type Chunk struct {
	Sequence uint32
	Bytes    []byte
}

func (Chunk) Kind() PacketKind { return KindChunk }

// Progress reports how much of the file at Index has been written to
// disk by the receiver, as an integer percentage.
type Progress struct {
	Index    uint32
	Progress uint32
}

func (Progress) Kind() PacketKind { return KindProgress }

// Encode serializes p into the compact binary schema: one tag byte
// followed by the fields in declaration order, integers as fixed-width
// big-endian values and byte strings with a uint32 length prefix.
func Encode(p Packet) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(p.Kind()))

	switch v := p.(type) {
	case Handshake:
		writeBytes(&buf, v.PublicKey)
		writeBytes(&buf, v.Signature)
	case HandshakeResponse:
		writeBytes(&buf, v.PublicKey)
		writeBytes(&buf, v.Signature)
	case List:
		binary.Write(&buf, binary.BigEndian, uint32(len(v.Files)))
		for _, f := range v.Files {
			binary.Write(&buf, binary.BigEndian, f.Index)
			writeString(&buf, f.Name)
			binary.Write(&buf, binary.BigEndian, f.Size)
		}
	case Chunk:
		binary.Write(&buf, binary.BigEndian, v.Sequence)
		writeBytes(&buf, v.Bytes)
	case Progress:
		binary.Write(&buf, binary.BigEndian, v.Index)
		binary.Write(&buf, binary.BigEndian, v.Progress)
	default:
		return nil, fmt.Errorf("protocol: unknown packet type %T", p)
	}
	return buf.Bytes(), nil
}

// Decode parses the compact binary schema back into the tagged
// packet union.
func Decode(data []byte) (Packet, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("protocol: empty packet")
	}
	r := bytes.NewReader(data[1:])
	switch PacketKind(data[0]) {
	case KindHandshake:
		pub, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		sig, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return Handshake{PublicKey: pub, Signature: sig}, nil
	case KindHandshakeResponse:
		pub, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		sig, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return HandshakeResponse{PublicKey: pub, Signature: sig}, nil
	case KindList:
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		files := make([]FileEntry, 0, n)
		for i := uint32(0); i < n; i++ {
			var idx uint32
			if err := binary.Read(r, binary.BigEndian, &idx); err != nil {
				return nil, err
			}
			name, err := readString(r)
			if err != nil {
				return nil, err
			}
			var size uint64
			if err := binary.Read(r, binary.BigEndian, &size); err != nil {
				return nil, err
			}
			files = append(files, FileEntry{Index: idx, Name: name, Size: size})
		}
		return List{Files: files}, nil
	case KindChunk:
		var seq uint32
		if err := binary.Read(r, binary.BigEndian, &seq); err != nil {
			return nil, err
		}
		b, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return Chunk{Sequence: seq, Bytes: b}, nil
	case KindProgress:
		var idx, pct uint32
		if err := binary.Read(r, binary.BigEndian, &idx); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &pct); err != nil {
			return nil, err
		}
		return Progress{Index: idx, Progress: pct}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown packet tag %d", data[0])
	}
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	binary.Write(buf, binary.BigEndian, uint32(len(b)))
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
