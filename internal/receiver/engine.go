// Package receiver implements the receiver side of the peer transfer
// protocol: handshake response, chunk sink, progress emission, and
// clean/interrupted leave handling.
package receiver

import (
	"crypto/ecdh"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/caesar-go/caesar/internal/cryptoutil"
	"github.com/caesar-go/caesar/internal/protocol"
	"github.com/caesar-go/caesar/internal/transfererrors"
	"github.com/gorilla/websocket"
)

// destinationPeer is the room address of the sender: the receiver
// always joins second and is therefore always member 1, so the
// sender that created the room is always member 0.
const destinationPeer = 0

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeName strips path components and disallowed characters from
// a file name carried over the wire, the same way the destination
// path is computed in the teacher's file layout conventions.
func sanitizeName(name string) string {
	base := filepath.Base(name)
	return unsafeNameChars.ReplaceAllString(base, "_")
}

type destFile struct {
	name         string
	size         int64
	bytesWritten int64
	lastPct      int64
	handle       *os.File
}

// Engine holds the receiver's per-transfer state: the out-of-band
// HMAC secret parsed from the invite code, an ephemeral ECDH key
// generated by New, the destination directory, and the files created
// once the sender's List packet arrives.
type Engine struct {
	hmacSecret []byte
	ecdhKey    *ecdh.PrivateKey
	destDir    string
	log        *slog.Logger

	sharedKey []byte
	files     []destFile
	index     int
	sequence  uint32
}

// ParseInvite splits an invite code on its rightmost '-', the
// delimiter between the room ID and the base64-encoded HMAC secret;
// room IDs may themselves contain hyphens (UUID-v4).
func ParseInvite(invite string) (roomID string, hmacSecret []byte, err error) {
	i := lastIndexByte(invite, '-')
	if i < 0 {
		return "", nil, transfererrors.ErrBadInvite
	}
	roomID = invite[:i]
	hmacSecret, err = base64.StdEncoding.DecodeString(invite[i+1:])
	if err != nil {
		return "", nil, transfererrors.ErrBadInvite
	}
	return roomID, hmacSecret, nil
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// New builds a receiver Engine for the given destination directory
// and out-of-band HMAC secret.
func New(destDir string, hmacSecret []byte, log *slog.Logger) (*Engine, error) {
	key, err := cryptoutil.NewEphemeralKey()
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	return &Engine{
		hmacSecret: hmacSecret,
		ecdhKey:    key,
		destDir:    destDir,
		log:        log,
	}, nil
}

type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
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

// Run joins roomID over conn and drives the receive protocol to
// completion: handshake response, file creation, chunk writes and
// progress emission. It returns nil on a clean finish.
func (e *Engine) Run(conn *websocket.Conn, roomID string) error {
	sess := &session{conn: conn}
	if err := sess.writeText(protocol.NewJoinRequest(roomID)); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: %v", transfererrors.ErrConnectFailed, err)
		}
		var done bool
		switch msgType {
		case websocket.TextMessage:
			done, err = e.handleControl(sess, data)
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

func (e *Engine) handleControl(sess *session, data []byte) (bool, error) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false, nil
	}

	switch env.Type {
	case protocol.ControlJoin:
		var msg protocol.JoinMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return false, nil
		}
		if msg.Size == nil {
			return false, nil
		}
		e.log.Info("connected to room")
		return false, nil

	case protocol.ControlLeave:
		for _, f := range e.files {
			if f.size > 0 && f.bytesWritten < f.size {
				return false, transfererrors.ErrInterruptedByPeer
			}
		}
		return true, nil

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
	if e.sharedKey != nil {
		plaintext, err = protocol.Open(e.sharedKey, frame.Body)
		if err != nil {
			return false, nil
		}
	}
	pkt, err := protocol.Decode(plaintext)
	if err != nil {
		return false, nil
	}

	switch p := pkt.(type) {
	case protocol.Handshake:
		return false, e.onHandshake(sess, p)
	case protocol.List:
		return false, e.onList(p)
	case protocol.Chunk:
		done, err := e.onChunk(sess, p)
		if err == nil && done {
			sess.writeText(protocol.NewLeaveRequest())
		}
		return done, err
	default:
		return false, nil
	}
}

func (e *Engine) onHandshake(sess *session, p protocol.Handshake) error {
	if e.sharedKey != nil {
		return transfererrors.ErrAlreadyHandshaken
	}
	if !cryptoutil.Verify(e.hmacSecret, p.PublicKey, p.Signature) {
		return transfererrors.ErrBadSignature
	}
	key, err := cryptoutil.DeriveSessionKey(e.ecdhKey, p.PublicKey)
	if err != nil {
		return err
	}

	ownPub := e.ecdhKey.PublicKey().Bytes()
	response := protocol.HandshakeResponse{
		PublicKey: ownPub,
		Signature: cryptoutil.Sign(e.hmacSecret, ownPub),
	}
	// Sent cleartext: the shared key is stored only after the
	// response is on the wire.
	raw, err := protocol.Encode(response)
	if err != nil {
		return err
	}
	if err := sess.writeBinary(protocol.EncodeFrame(destinationPeer, raw)); err != nil {
		return err
	}

	e.sharedKey = key
	return nil
}

func (e *Engine) onList(p protocol.List) error {
	files := make([]destFile, len(p.Files))
	for _, entry := range p.Files {
		name := sanitizeName(entry.Name)
		dest := filepath.Join(e.destDir, name)
		if _, err := os.Stat(dest); err == nil {
			return fmt.Errorf("%s: %w", name, transfererrors.ErrFileExists)
		}
		handle, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("create %s: %w", dest, err)
		}
		if int(entry.Index) >= len(files) {
			return fmt.Errorf("list entry index out of range")
		}
		files[entry.Index] = destFile{name: name, size: int64(entry.Size), handle: handle}
	}
	e.files = files
	e.index = 0
	e.sequence = 0
	return nil
}

func (e *Engine) onChunk(sess *session, p protocol.Chunk) (bool, error) {
	if e.sharedKey == nil {
		return false, transfererrors.ErrNoKey
	}
	if p.Sequence != e.sequence {
		return false, fmt.Errorf("expected sequence %d, got %d: %w", e.sequence, p.Sequence, transfererrors.ErrSequenceMismatch)
	}
	if e.index >= len(e.files) {
		return false, fmt.Errorf("chunk received with no file in progress")
	}
	f := &e.files[e.index]

	if _, err := f.handle.Write(p.Bytes); err != nil {
		return false, fmt.Errorf("write %s: %w", f.name, err)
	}
	f.bytesWritten += int64(len(p.Bytes))
	e.sequence++

	pct := f.bytesWritten * 100 / f.size
	if pct == 100 || pct-f.lastPct >= 1 || p.Sequence == 0 {
		progress := protocol.Progress{Index: uint32(e.index), Progress: uint32(pct)}
		raw, err := protocol.Encode(progress)
		if err == nil {
			sealed, err := protocol.Seal(e.sharedKey, raw)
			if err == nil {
				sess.writeBinary(protocol.EncodeFrame(destinationPeer, sealed))
			}
		}
		f.lastPct = pct
	}

	if f.bytesWritten == f.size {
		f.handle.Close()
		e.index++
		e.sequence = 0
		if e.index == len(e.files) {
			return true, nil
		}
	}
	return false, nil
}

