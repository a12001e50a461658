// Package rendezvous implements the dual-path LAN/relay connection
// race both the sender and receiver run, and the thin glue that
// publishes and resolves transfer advertisements around it.
package rendezvous

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/caesar-go/caesar/internal/registryclient"
	"github.com/caesar-go/caesar/internal/relay"
	"github.com/caesar-go/caesar/internal/sender"
	"github.com/caesar-go/caesar/internal/transfererrors"
	"github.com/gorilla/websocket"
	"github.com/google/uuid"
)

// LANPort is the fixed port the sender's embedded LAN relay binds,
// and the port receivers dial directly when trying the LAN path.
const LANPort = "9000"

// SendFiles drives a full sender-side transfer: it generates a room
// ID and key material, binds an embedded LAN relay, and races a
// connection to that embedded relay against a connection to the
// remote relay, publishing the registry advertisement as each side
// completes its room creation. The invite code is printed once both
// room slots are populated.
func SendFiles(ctx context.Context, relayURL, lanIP string, paths []string, log *slog.Logger) error {
	roomID := uuid.NewString()
	engine, err := sender.New(roomID, paths, log)
	if err != nil {
		return err
	}
	hashedName := relay.HashName(roomID)

	lanCtx, lanCancel := context.WithCancel(ctx)
	defer lanCancel()
	lanServer := relay.New("0.0.0.0:"+LANPort, log, true)
	go func() {
		if err := lanServer.Run(lanCtx); err != nil {
			log.Error("embedded LAN relay", "err", err)
		}
	}()

	reg := registryclient.New(relayURL)
	var (
		mu        sync.Mutex
		announced bool
	)
	publish := func(isLocal bool) {
		mu.Lock()
		defer mu.Unlock()
		ad := relay.Advertisement{Name: hashedName, IP: lanIP}
		if isLocal {
			ad.LocalRoomID = roomID
		} else {
			ad.RelayRoomID = roomID
		}
		merged, err := reg.Upload(ad)
		if err != nil {
			log.Error("publish advertisement", "err", err)
			return
		}
		if !announced && merged.LocalRoomID != "" && merged.RelayRoomID != "" {
			announced = true
			fmt.Printf("Invite code: %s\n", engine.InviteCode())
		}
	}

	raceCtx, cancelRace := context.WithCancel(ctx)
	defer cancelRace()

	results := make(chan error, 2)
	go func() {
		results <- dialAndRun(raceCtx, engine, relayURL+"/ws", relayURL, func() { publish(false) })
	}()
	go func() {
		results <- dialAndRun(raceCtx, engine, "ws://localhost:"+LANPort+"/ws", "ws://localhost:"+LANPort, func() { publish(true) })
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		err := <-results
		if err == nil {
			cancelRace()
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func dialAndRun(ctx context.Context, engine *sender.Engine, wsURL, origin string, onCreated func()) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{origin}})
	if err != nil {
		return fmt.Errorf("%w: %v", transfererrors.ErrConnectFailed, err)
	}
	defer conn.Close()
	return engine.Run(ctx, conn, onCreated)
}
