// Package sender implements the sender side of the peer transfer
// protocol: file enumeration, handshake initiation, the chunk pump,
// and progress consumption.
package sender

import (
	"context"
	"crypto/ecdh"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caesar-go/caesar/internal/cryptoutil"
	"github.com/caesar-go/caesar/internal/protocol"
	"github.com/caesar-go/caesar/internal/transfererrors"
	"github.com/gorilla/websocket"
)

// destinationPeer is the room address of the receiver: the sender
// always creates its room and is therefore always member 0, so the
// receiver that subsequently joins is always member 1.
const destinationPeer = 1

// chunkCap is the maximum byte length of one Chunk packet's payload.
const chunkCap = 65535

// interFileDelay is the pause between files: it lets the receiver
// flush its OS buffers and emit its final progress packet before the
// next file's sequence begins.
const interFileDelay = 750 * time.Millisecond

type fileDescriptor struct {
	path string
	name string
	size int64
}

// Engine holds the state shared by every signalling connection a
// sender races: the out-of-band HMAC secret, the ephemeral ECDH key,
// the enumerated file list, and the room ID. These are generated once
// per transfer and reused identically whether the eventual peer
// connects over LAN or through the remote relay.
type Engine struct {
	hmacSecret []byte
	ecdhKey    *ecdh.PrivateKey
	files      []fileDescriptor
	roomID     string
	log        *slog.Logger
}

// New enumerates paths (rejecting directories and zero-length files),
// generates fresh key material, and returns an Engine ready to drive
// one or more races connections for roomID.
func New(roomID string, paths []string, log *slog.Logger) (*Engine, error) {
	files, err := enumerate(paths)
	if err != nil {
		return nil, err
	}
	hmacSecret, err := cryptoutil.NewHMACSecret()
	if err != nil {
		return nil, fmt.Errorf("generate hmac secret: %w", err)
	}
	key, err := cryptoutil.NewEphemeralKey()
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	return &Engine{
		hmacSecret: hmacSecret,
		ecdhKey:    key,
		files:      files,
		roomID:     roomID,
		log:        log,
	}, nil
}

func enumerate(paths []string) ([]fileDescriptor, error) {
	descs := make([]fileDescriptor, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s: %w", p, transfererrors.ErrPathIsDirectory)
		}
		if info.Size() == 0 {
			return nil, fmt.Errorf("%s: %w", p, transfererrors.ErrFileEmpty)
		}
		descs = append(descs, fileDescriptor{path: p, name: filepath.Base(p), size: info.Size()})
	}
	return descs, nil
}

// RoomID returns the room ID this engine advertises.
func (e *Engine) RoomID() string { return e.roomID }

// InviteCode returns "<room_id>-<base64(hmac_secret)>", split on the
// rightmost '-' by the receiver.
func (e *Engine) InviteCode() string {
	return e.roomID + "-" + base64.StdEncoding.EncodeToString(e.hmacSecret)
}

// session holds the mutable state of a single signalling connection
// attempt: the session key once established, and the cancel function
// for its chunk pump goroutine.
type session struct {
	conn       *websocket.Conn
	writeMu    sync.Mutex
	sharedKey  []byte
	cancelPump context.CancelFunc
}

func (s *session) writeText(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *session) writeBinary(b []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (s *session) sendPacket(dest byte, pkt protocol.Packet) error {
	raw, err := protocol.Encode(pkt)
	if err != nil {
		return err
	}
	body := raw
	if s.sharedKey != nil {
		sealed, err := protocol.Seal(s.sharedKey, raw)
		if err != nil {
			return err
		}
		body = sealed
	}
	return s.writeBinary(protocol.EncodeFrame(dest, body))
}

// Run drives one signalling connection to completion: it sends
// create{id}, then dispatches inbound control and binary messages
// until the transfer finishes cleanly, the relay reports an error, or
// the connection fails. A peer leaving does not end Run: the chunk
// pump is stopped, the session key is cleared, and the connection
// stays open for a new handshake. onCreated is invoked once the relay
// echoes the room ID, so the caller can publish the registry
// advertisement.
//
// Closing ctx aborts the connection (used by the LAN/relay race to
// cancel the losing attempt).
func (e *Engine) Run(ctx context.Context, conn *websocket.Conn, onCreated func()) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	sess := &session{conn: conn}
	if err := sess.writeText(protocol.NewCreate(e.roomID)); err != nil {
		return fmt.Errorf("send create: %w", err)
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", transfererrors.ErrConnectFailed, err)
		}
		var done bool
		switch msgType {
		case websocket.TextMessage:
			done, err = e.handleControl(sess, data, onCreated)
		case websocket.BinaryMessage:
			done, err = e.handleBinary(sess, data)
		}
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (e *Engine) handleControl(sess *session, data []byte, onCreated func()) (bool, error) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false, nil
	}

	switch env.Type {
	case protocol.ControlCreate:
		if onCreated != nil {
			onCreated()
		}
		return false, nil

	case protocol.ControlJoin:
		var msg protocol.JoinMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return false, nil
		}
		if msg.Size != nil {
			return false, nil // sender only ever creates, never receives the newcomer variant
		}
		pub := e.ecdhKey.PublicKey().Bytes()
		handshake := protocol.Handshake{
			PublicKey: pub,
			Signature: cryptoutil.Sign(e.hmacSecret, pub),
		}
		if err := sess.sendPacket(destinationPeer, handshake); err != nil {
			return false, fmt.Errorf("send handshake: %w", err)
		}
		return false, nil

	case protocol.ControlLeave:
		if sess.cancelPump != nil {
			sess.cancelPump()
			sess.cancelPump = nil
		}
		sess.sharedKey = nil
		e.log.Error("peer left the room, waiting to re-handshake")
		return false, nil

	case protocol.ControlError:
		var msg protocol.ErrorMessage
		json.Unmarshal(data, &msg)
		return false, fmt.Errorf("relay: %s", msg.Message)

	default:
		return false, nil
	}
}

func (e *Engine) handleBinary(sess *session, data []byte) (bool, error) {
	frame, err := protocol.DecodeFrame(data)
	if err != nil {
		return false, nil
	}

	plaintext := frame.Body
	if sess.sharedKey != nil {
		plaintext, err = protocol.Open(sess.sharedKey, frame.Body)
		if err != nil {
			return false, nil
		}
	}
	pkt, err := protocol.Decode(plaintext)
	if err != nil {
		return false, nil
	}

	switch p := pkt.(type) {
	case protocol.HandshakeResponse:
		if sess.sharedKey != nil {
			return false, transfererrors.ErrAlreadyHandshaken
		}
		if !cryptoutil.Verify(e.hmacSecret, p.PublicKey, p.Signature) {
			return false, transfererrors.ErrBadSignature
		}
		key, err := cryptoutil.DeriveSessionKey(e.ecdhKey, p.PublicKey)
		if err != nil {
			return false, err
		}
		sess.sharedKey = key

		listPkt := protocol.List{Files: e.fileEntries()}
		if err := sess.sendPacket(destinationPeer, listPkt); err != nil {
			return false, fmt.Errorf("send list: %w", err)
		}

		pumpCtx, cancel := context.WithCancel(context.Background())
		sess.cancelPump = cancel
		go e.runChunkPump(pumpCtx, sess)
		return false, nil

	case protocol.Progress:
		e.log.Info("progress", "index", p.Index, "pct", p.Progress)
		if p.Progress == 100 && int(p.Index) == len(e.files)-1 {
			return true, nil
		}
		return false, nil

	default:
		return false, nil
	}
}

func (e *Engine) fileEntries() []protocol.FileEntry {
	entries := make([]protocol.FileEntry, len(e.files))
	for i, f := range e.files {
		entries[i] = protocol.FileEntry{Index: uint32(i), Name: f.name, Size: uint64(f.size)}
	}
	return entries
}

func (e *Engine) runChunkPump(ctx context.Context, sess *session) {
	for _, f := range e.files {
		if err := e.pumpFile(ctx, sess, f); err != nil {
			if ctx.Err() == nil {
				e.log.Error("chunk pump", "file", f.name, "err", err)
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interFileDelay):
		}
	}
}

func (e *Engine) pumpFile(ctx context.Context, sess *session, f fileDescriptor) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	buf := make([]byte, chunkCap)
	var sequence uint32
	remaining := f.size
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n := int64(chunkCap)
		if n > remaining {
			n = remaining
		}
		read, err := io.ReadFull(file, buf[:n])
		if err != nil {
			return fmt.Errorf("read %s: %w", f.path, err)
		}
		chunk := protocol.Chunk{Sequence: sequence, Bytes: append([]byte(nil), buf[:read]...)}
		if err := sess.sendPacket(destinationPeer, chunk); err != nil {
			return fmt.Errorf("send chunk: %w", err)
		}
		sequence++
		remaining -= int64(read)
	}
	return nil
}
