// pipeline-sim drives a running statussync server through the stages of a
// simulated meeting pipeline. Useful for manual testing and demos:
//
//	TARGET=http://localhost:8080 WRITE_TOKEN=secret go run .
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

var stages = []string{"transcribe", "summarize", "extract_actions", "crm_push"}

type updateRequest struct {
	Status       string `json:"status"`
	Step         string `json:"step,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func main() {
	target := "http://localhost:8080"
	if v := os.Getenv("TARGET"); v != "" {
		target = v
	}
	token := os.Getenv("WRITE_TOKEN")

	meetings := 1
	if v := os.Getenv("MEETINGS"); v != "" {
		fmt.Sscanf(v, "%d", &meetings)
	}

	failRate := 0.2
	if v := os.Getenv("FAIL_RATE"); v != "" {
		fmt.Sscanf(v, "%f", &failRate)
	}

	stageDelay := 500 * time.Millisecond
	if v := os.Getenv("STAGE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			stageDelay = d
		}
	}

	client := &http.Client{Timeout: 10 * time.Second}

	for i := 0; i < meetings; i++ {
		meetingID := newMeetingID()
		log.Printf("pipeline-sim: meeting %s starting", meetingID)
		runPipeline(client, target, token, meetingID, failRate, stageDelay)

		status, err := readStatus(client, target, meetingID)
		if err != nil {
			log.Printf("pipeline-sim: meeting %s read-back failed: %v", meetingID, err)
			continue
		}
		log.Printf("pipeline-sim: meeting %s final: %s", meetingID, status)
	}
}

func newMeetingID() string {
	return uuid.NewString()
}

func runPipeline(client *http.Client, target, token, meetingID string, failRate float64, stageDelay time.Duration) {
	for _, stage := range stages {
		postUpdate(client, target, token, meetingID, updateRequest{
			Status: "in_progress",
			Step:   stage,
		})
		time.Sleep(stageDelay)

		if rand.Float64() < failRate {
			postUpdate(client, target, token, meetingID, updateRequest{
				Status:       "failure",
				Step:         stage,
				ErrorMessage: fmt.Sprintf("simulated %s failure", stage),
			})
			return
		}
	}

	postUpdate(client, target, token, meetingID, updateRequest{
		Status: "success",
		Step:   stages[len(stages)-1],
	})
}

func postUpdate(client *http.Client, target, token, meetingID string, update updateRequest) {
	body, _ := json.Marshal(update)
	req, err := http.NewRequest(http.MethodPost, target+"/meetings/"+meetingID+"/status", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("pipeline-sim: build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Printf("pipeline-sim: post %s %s: %v", meetingID, update.Step, err)
		return
	}
	defer resp.Body.Close()

	ack, _ := io.ReadAll(resp.Body)
	log.Printf("pipeline-sim: %s %s/%s -> %d %s", meetingID, update.Status, update.Step, resp.StatusCode, bytes.TrimSpace(ack))
}

func readStatus(client *http.Client, target, meetingID string) (string, error) {
	resp, err := client.Get(target + "/meetings/" + meetingID + "/status")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(body)), nil
}
