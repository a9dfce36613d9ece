package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"truthlens-api/logging"
	"truthlens-api/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type liveMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// LiveWebSocket streams every newly stored prediction summary to the client.
func LiveWebSocket(kv *services.KVStore, authService *services.AuthService, logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token query parameter"})
			return
		}

		claims, err := authService.ValidateToken(tokenStr)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.WithError(err).Warn("Websocket upgrade failed")
			return
		}
		defer conn.Close()

		log := logger.WithField("user_id", claims.UserID)
		log.Debug("Live feed client connected")

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// Read pump: detect client disconnect
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		pubsub := kv.Subscribe(ctx, services.PredictionsChannel)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				log.Debug("Live feed client disconnected")
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				data := json.RawMessage(msg.Payload)
				if !json.Valid(data) {
					data, _ = json.Marshal(msg.Payload)
				}
				if err := conn.WriteJSON(liveMessage{Type: "prediction", Data: data}); err != nil {
					log.WithError(err).Debug("Websocket write failed")
					return
				}
			}
		}
	}
}
