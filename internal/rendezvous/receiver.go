package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/caesar-go/caesar/internal/receiver"
	"github.com/caesar-go/caesar/internal/registryclient"
	"github.com/caesar-go/caesar/internal/relay"
	"github.com/caesar-go/caesar/internal/transfererrors"
	"github.com/gorilla/websocket"
)

// lanDialTimeout bounds how long the receiver waits for the LAN path
// before falling back to the remote relay.
const lanDialTimeout = 5 * time.Second

// ReceiveFiles parses invite as "<room_id>-<base64 hmac>", looks up
// the sender's advertisement by the hash of the room ID, then races
// the LAN path (advertisement.IP:9000) against the relay path: LAN is
// tried first under a bounded timeout, and only on failure or timeout
// does the receiver fall back to the relay.
func ReceiveFiles(ctx context.Context, relayURL, invite, destDir string, log *slog.Logger) error {
	roomID, hmacSecret, err := receiver.ParseInvite(invite)
	if err != nil {
		return err
	}

	hashedName := relay.HashName(roomID)
	reg := registryclient.New(relayURL)
	ad, ok, err := reg.Download(hashedName)
	if err != nil {
		return fmt.Errorf("lookup advertisement: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: advertisement not found", transfererrors.ErrNoRoom)
	}

	engine, err := receiver.New(destDir, hmacSecret, log)
	if err != nil {
		return err
	}

	conn, err := dialLAN(ad.IP)
	if err != nil {
		log.Info("LAN path unavailable, falling back to relay", "err", err)
		conn, err = dialRelay(relayURL)
		if err != nil {
			return err
		}
	}
	defer conn.Close()

	if err := engine.Run(conn, roomID); err != nil {
		return err
	}

	if err := reg.DownloadSuccess(hashedName); err != nil {
		log.Warn("download_success notification failed", "err", err)
	}
	return nil
}

func dialLAN(ip string) (*websocket.Conn, error) {
	if ip == "" {
		return nil, fmt.Errorf("%w: no LAN address advertised", transfererrors.ErrConnectFailed)
	}
	dialer := &websocket.Dialer{HandshakeTimeout: lanDialTimeout}
	url := "ws://" + ip + ":" + LANPort + "/ws"
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, fmt.Errorf("%w: %v", transfererrors.ErrConnectTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", transfererrors.ErrConnectFailed, err)
	}
	return conn, nil
}

func dialRelay(relayURL string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(relayURL+"/ws", http.Header{"Origin": []string{relayURL}})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transfererrors.ErrConnectFailed, err)
	}
	return conn, nil
}
