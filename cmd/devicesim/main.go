// devicesim is a stand-in presence device feed for local runs: it
// accepts WebSocket connections and emits {uid, time} pings at a fixed
// interval, cycling through the configured badge IDs.
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/example/attendgate/pkg/logging"
)

type ping struct {
	UID  string `json:"uid"`
	Time string `json:"time"`
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	interval := flag.Duration("interval", 5*time.Second, "delay between pings")
	badges := flag.String("badges", "BADGE-1,BADGE-2,BADGE-3", "comma-separated badge IDs to cycle through")
	flag.Parse()

	logger := logging.New(logging.LevelInfo)
	uids := strings.Split(*badges, ",")

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			logger.Error("Failed to accept connection", slog.Any("error", err))
			return
		}
		defer conn.CloseNow()
		logger.Info("Connector attached", slog.String("remote", r.RemoteAddr))

		ctx := r.Context()
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			frame, err := json.Marshal(ping{
				UID:  uids[i%len(uids)],
				Time: time.Now().Format("2006-01-02 15:04:05"),
			})
			if err != nil {
				logger.Error("Failed to encode ping", slog.Any("error", err))
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				logger.Info("Connector detached", slog.Any("error", err))
				return
			}
			logger.Info("Ping sent", slog.String("uid", uids[i%len(uids)]))
		}
	})

	logger.Info("Device feed simulator listening", slog.String("addr", *addr))
	if err := http.ListenAndServe(*addr, nil); err != nil {
		logger.Error("Simulator failed", slog.Any("error", err))
	}
}
