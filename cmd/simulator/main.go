// Package main - simulator
// Scripted bot driver: connects N websocket players, starts a game and
// auto-answers every prompt. Used for soak runs against a local server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Stats tracks what the bots saw.
type Stats struct {
	MessagesReceived int64
	PromptsAnswered  int64
	Errors           int64
}

var optionLine = regexp.MustCompile(`(?m)^(\d+)\. `)

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	apiURL := flag.String("api", "http://localhost:8080", "HTTP API base URL")
	numClients := flag.Int("clients", 8, "Number of bot players")
	room := flag.String("room", "SIM_ROOM_1", "Room identifier")
	mode := flag.String("mode", "classic", "Game mode")
	duration := flag.Duration("duration", 10*time.Minute, "Maximum run time")
	flag.Parse()

	fmt.Println("=========================================")
	fmt.Println("WOLFDEN SIMULATOR")
	fmt.Println("=========================================")
	fmt.Printf("Server:  %s\n", *serverURL)
	fmt.Printf("Clients: %d\n", *numClients)
	fmt.Printf("Room:    %s\n", *room)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		cancel()
	}()

	stats := &Stats{}
	var wg sync.WaitGroup

	for i := 0; i < *numClients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runBot(ctx, *serverURL, fmt.Sprintf("bot-%d", i), stats)
		}(i)
	}

	// Give the bots a moment to connect, then start the game.
	time.Sleep(2 * time.Second)
	if err := startGame(*apiURL, *room, *mode, *numClients); err != nil {
		log.Fatalf("cannot start game: %v", err)
	}

	wg.Wait()
	fmt.Println("=========================================")
	fmt.Printf("Messages received: %d\n", atomic.LoadInt64(&stats.MessagesReceived))
	fmt.Printf("Prompts answered:  %d\n", atomic.LoadInt64(&stats.PromptsAnswered))
	fmt.Printf("Errors:            %d\n", atomic.LoadInt64(&stats.Errors))
}

func startGame(apiURL, room, mode string, n int) error {
	players := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		players = append(players, map[string]string{
			"id":   fmt.Sprintf("bot-%d", i),
			"name": fmt.Sprintf("Bot%d", i),
		})
	}
	body, _ := json.Marshal(map[string]any{
		"room":    room,
		"mode":    mode,
		"players": players,
	})
	resp, err := http.Post(apiURL+"/api/game/start", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("start returned %s", resp.Status)
	}
	return nil
}

// runBot connects one player and answers every prompt it can recognize:
// numbered candidate lists get a random valid pick, yes/no questions a
// coin flip.
func runBot(ctx context.Context, serverURL, actorID string, stats *Stats) {
	conn, _, err := websocket.DefaultDialer.Dial(serverURL+"?actor_id="+actorID, nil)
	if err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		log.Printf("%s: dial failed: %v", actorID, err)
		return
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	say := func(text string) {
		frame, _ := json.Marshal(map[string]string{"type": "say", "text": text})
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			atomic.AddInt64(&stats.Errors, 1)
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		atomic.AddInt64(&stats.MessagesReceived, 1)

		for _, line := range bytes.Split(raw, []byte{'\n'}) {
			var frame struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}
			if err := json.Unmarshal(line, &frame); err != nil || frame.Type == "event" {
				continue
			}

			options := optionLine.FindAllStringSubmatch(frame.Text, -1)
			switch {
			case len(options) > 0:
				// Think for a moment, then pick a random candidate.
				time.Sleep(time.Duration(500+rng.Intn(1500)) * time.Millisecond)
				say(fmt.Sprint(1 + rng.Intn(len(options))))
				atomic.AddInt64(&stats.PromptsAnswered, 1)
			case strings.Contains(frame.Text, "(yes/no)"):
				time.Sleep(time.Duration(500+rng.Intn(1500)) * time.Millisecond)
				if rng.Intn(2) == 0 {
					say("yes")
				} else {
					say("no")
				}
				atomic.AddInt64(&stats.PromptsAnswered, 1)
			}
		}
	}
}
