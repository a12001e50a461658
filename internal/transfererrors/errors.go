// Package transfererrors defines the sentinel errors shared by the
// relay, sender and receiver so callers can classify failures with
// errors.Is instead of matching on message strings.
package transfererrors

import "errors"

var (
	// ErrBadInvite signals a malformed invite code: missing the
	// rightmost delimiter, or a non-base64 HMAC secret.
	ErrBadInvite = errors.New("invite code not valid")

	// ErrNoRoom signals a join against a room ID the relay does not
	// know about. The message is wire contract: sent verbatim as the
	// relay's error{message} to the client.
	ErrNoRoom = errors.New("The room does not exist.")

	// ErrRoomFull signals a join against a room already at capacity.
	// The message is wire contract: sent verbatim as the relay's
	// error{message} to the client.
	ErrRoomFull = errors.New("The room is full.")

	// ErrAlreadyInRoom signals a create or join from a connection
	// already a member of some room.
	ErrAlreadyInRoom = errors.New("already in a room")

	// ErrDuplicateRoomID signals a create with an ID already in use.
	// The message is wire contract: sent verbatim as the relay's
	// error{message} to the client.
	ErrDuplicateRoomID = errors.New("A room with that identifier already exists.")

	// ErrBadSignature signals an HMAC verification failure on a
	// handshake or handshake response.
	ErrBadSignature = errors.New("bad signature")

	// ErrAlreadyHandshaken signals a repeated handshake attempt after
	// a shared session key is already established.
	ErrAlreadyHandshaken = errors.New("already handshaken")

	// ErrNoKey signals a binary frame decrypted before a shared
	// session key was established.
	ErrNoKey = errors.New("no shared key established")

	// ErrSequenceMismatch signals a chunk whose sequence number does
	// not match the receiver's expected next sequence.
	ErrSequenceMismatch = errors.New("sequence mismatch")

	// ErrFileExists signals a receiver-side destination collision.
	ErrFileExists = errors.New("the file already exists")

	// ErrFileEmpty signals a sender-side zero-length file.
	ErrFileEmpty = errors.New("file is empty")

	// ErrPathIsDirectory signals a sender-side path that names a
	// directory rather than a regular file.
	ErrPathIsDirectory = errors.New("path is a directory")

	// ErrInterruptedByPeer signals a leave event while a transfer is
	// still in progress.
	ErrInterruptedByPeer = errors.New("transfer was interrupted because the peer left the room")

	// ErrConnectFailed signals a signalling dial failure.
	ErrConnectFailed = errors.New("failed to connect")

	// ErrConnectTimeout signals a signalling dial that did not
	// complete within the connection deadline.
	ErrConnectTimeout = errors.New("timed out while connecting")
)
