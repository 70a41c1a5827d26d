// ABOUTME: Minimal fake agent webhook for end-to-end testing of the gateway.
// ABOUTME: Usage: fake-agent [-addr localhost:5678] [-name frontdesk_agent] [-mode echo]

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"
)

type requestEnvelope struct {
	SessionID string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
	FromAgent string          `json:"from_agent"`
}

type replyEnvelope struct {
	Output          string `json:"output"`
	FromAgent       string `json:"from_agent"`
	ToAgent         string `json:"to_agent,omitempty"`
	EndConversation bool   `json:"end_conversation,omitempty"`
	ExecutionID     string `json:"execution_id,omitempty"`
}

func main() {
	addr := flag.String("addr", "localhost:5678", "HTTP listen address")
	name := flag.String("name", "frontdesk_agent", "agent name reported in replies")
	mode := flag.String("mode", "echo", "behavior: echo, handoff, malformed, slow, failing")
	handoffTo := flag.String("handoff-to", "scheduling_agent", "agent named in to_agent for handoff mode")
	endAfter := flag.Int("end-after", 3, "handoff mode: end the conversation after this many calls")
	delay := flag.Duration("delay", 45*time.Second, "slow mode: response delay")
	flag.Parse()

	var calls atomic.Int64

	http.HandleFunc("POST /webhook", func(w http.ResponseWriter, r *http.Request) {
		var req requestEnvelope
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		n := calls.Add(1)
		log.Printf("call %d: session=%s from=%s message=%s", n, req.SessionID, req.FromAgent, req.Message)

		switch *mode {
		case "malformed":
			// Deliberately omits the required output field.
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"from_agent": %q}`, *name)
			return
		case "slow":
			time.Sleep(*delay)
		case "failing":
			http.Error(w, "agent exploded", http.StatusInternalServerError)
			return
		}

		reply := replyEnvelope{
			Output:      fmt.Sprintf("echo from %s: %s", *name, req.Message),
			FromAgent:   *name,
			ExecutionID: fmt.Sprintf("fake-%d", n),
		}
		if *mode == "handoff" {
			if int(n) >= *endAfter {
				reply.EndConversation = true
			} else {
				reply.ToAgent = *handoffTo
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("execution_id", reply.ExecutionID)
		json.NewEncoder(w).Encode(reply)
	})

	log.Printf("fake agent %q listening on %s (mode=%s)", *name, *addr, *mode)
	log.Fatal(http.ListenAndServe(*addr, nil))
}
