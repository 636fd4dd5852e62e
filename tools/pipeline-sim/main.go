package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var stages = []string{"qualified", "proposal", "negotiation", "closedWon"}

type createdDeal struct {
	ID    string `json:"id"`
	Stage string `json:"stage"`
}

type dropResult struct {
	Deal  createdDeal `json:"deal"`
	Moved bool        `json:"moved"`
}

// otherStage picks a random stage different from current.
func otherStage(current string) string {
	candidates := make([]string, 0, len(stages))
	for _, s := range stages {
		if s != current {
			candidates = append(candidates, s)
		}
	}
	return candidates[rand.IntN(len(candidates))]
}

// drop moves d to a different stage and reports whether the server moved it.
func drop(ctx context.Context, client *http.Client, baseURL string, d *createdDeal) (bool, error) {
	payload := map[string]string{"deal_id": d.ID, "source": d.Stage, "destination": otherStage(d.Stage)}
	var res dropResult
	if err := send(ctx, client, http.MethodPost, baseURL+"/pipeline/drop", payload, http.StatusOK, &res); err != nil {
		return false, err
	}
	if res.Moved {
		d.Stage = res.Deal.Stage
	}
	return res.Moved, nil
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Dashboard base URL")
	concurrency := flag.Int("c", 4, "Number of concurrent sales reps")
	duration := flag.Duration("d", 30*time.Second, "Duration of the simulation")
	rps := flag.Int("rps", 20, "Requests per second limit")
	flag.Parse()

	log.Printf("Starting pipeline simulation against %s", *baseURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var created, moved, unchanged, deleted, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), *rps)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}
			var owned []createdDeal

			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				switch roll := rand.IntN(10); {
				case roll < 4 || len(owned) == 0:
					payload := map[string]any{
						"title":       fmt.Sprintf("Sim deal %s", uuid.NewString()[:8]),
						"company":     fmt.Sprintf("Rep %d Prospect", workerID),
						"value":       float64(1000 * (1 + rand.IntN(200))),
						"probability": rand.IntN(101),
						"stage":       stages[0],
					}
					var d createdDeal
					if err := send(ctx, client, http.MethodPost, *baseURL+"/deals", payload, http.StatusCreated, &d); err != nil {
						errorCount.Add(1)
						continue
					}
					owned = append(owned, d)
					created.Add(1)
				case roll < 9:
					ok, err := drop(ctx, client, *baseURL, &owned[rand.IntN(len(owned))])
					switch {
					case err != nil:
						errorCount.Add(1)
					case ok:
						moved.Add(1)
					default:
						unchanged.Add(1)
					}
				default:
					i := rand.IntN(len(owned))
					if err := send(ctx, client, http.MethodDelete, *baseURL+"/deals/"+owned[i].ID, nil, http.StatusNoContent, nil); err != nil {
						errorCount.Add(1)
						continue
					}
					owned = append(owned[:i], owned[i+1:]...)
					deleted.Add(1)
				}
			}
		}(i)
	}

	wg.Wait()

	total := created.Load() + moved.Load() + unchanged.Load() + deleted.Load() + errorCount.Load()
	log.Println("Simulation finished.")
	log.Printf("Total Requests: %d", total)
	log.Printf("Created: %d, Dropped: %d, Unchanged drops: %d, Deleted: %d", created.Load(), moved.Load(), unchanged.Load(), deleted.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", float64(total)/duration.Seconds())
}

func send(ctx context.Context, client *http.Client, method, url string, body any, want int, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: unexpected status %d", method, url, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
