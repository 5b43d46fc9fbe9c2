package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BaseURL   = "http://localhost:8080"
	WSURL     = "ws://localhost:8080/ws"
	RoomCount = 20 // concurrent canvas rooms
	UsersPer  = 5  // users drawing in each room
	OpCount   = 50 // strokes per user
)

type authResponse struct {
	Token    string `json:"access_token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

func main() {
	log.Printf("🔥 STARTING CANVAS STRESS TEST: %d rooms x %d users x %d strokes...",
		RoomCount, UsersPer, OpCount)
	var wg sync.WaitGroup

	for r := 0; r < RoomCount; r++ {
		for u := 0; u < UsersPer; u++ {
			wg.Add(1)
			go func(roomIdx, userIdx int) {
				defer wg.Done()
				runUser(fmt.Sprintf("load-room-%d", roomIdx), fmt.Sprintf("u_%d_%d", roomIdx, userIdx))
			}(r, u)
		}
	}

	wg.Wait()
	log.Println("✅ LOAD TEST COMPLETE")
}

func runUser(roomID, username string) {
	token := authenticate(username, "password123")
	if token == "" {
		return
	}

	conn, _, err := websocket.DefaultDialer.Dial(WSURL+"?token="+token, nil)
	if err != nil {
		log.Printf("❌ dial failed for %s: %v", username, err)
		return
	}
	defer conn.Close()

	// Drain server frames so the send buffer never backs up.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send(conn, "join-room", map[string]interface{}{"room_id": roomID})

	for i := 0; i < OpCount; i++ {
		send(conn, "draw", map[string]interface{}{
			"payload": map[string]interface{}{
				"points": []float64{rand.Float64() * 800, rand.Float64() * 600},
				"color":  "#1a73e8",
				"width":  2,
			},
		})
		send(conn, "cursor-move", map[string]interface{}{
			"cursor": map[string]float64{"x": rand.Float64() * 800, "y": rand.Float64() * 600},
		})
		time.Sleep(20 * time.Millisecond)
	}

	send(conn, "leave-room", map[string]interface{}{})
}

func send(conn *websocket.Conn, event string, data interface{}) {
	raw, _ := json.Marshal(data)
	frame, _ := json.Marshal(map[string]interface{}{"event": event, "data": json.RawMessage(raw)})
	conn.WriteMessage(websocket.TextMessage, frame)
}

// authenticate registers the user and logs in. The register may fail
// on a rerun because the account already exists; that is fine.
func authenticate(username, password string) string {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	if resp, err := http.Post(BaseURL+"/register", "application/json", bytes.NewReader(body)); err == nil {
		resp.Body.Close()
	}

	resp, err := http.Post(BaseURL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("❌ login failed for %s: %v", username, err)
		return ""
	}
	defer resp.Body.Close()

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil || auth.Token == "" {
		log.Printf("❌ login rejected for %s", username)
		return ""
	}
	return auth.Token
}
