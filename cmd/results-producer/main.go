package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
)

// ResultsSubmission mirrors the body of POST /api/scores/upsert
type ResultsSubmission struct {
	LobbyID string        `json:"lobbyId"`
	Results []ResultEntry `json:"results"`
}

// ResultEntry is one player's score line
type ResultEntry struct {
	PlayerAddress  string `json:"player_address"`
	Score          int64  `json:"score"`
	CorrectAnswers int64  `json:"correct_answers"`
	TotalQuestions int64  `json:"total_questions"`
	TimeBonus      int64  `json:"time_bonus"`
}

func playerAddress(idx int) string {
	return fmt.Sprintf("0x%040x", idx+1)
}

// randomGame builds a finished game for a random subset of the player pool
func randomGame(lobbyID string, playerPool, playersPerGame, questions int) ResultsSubmission {
	if playersPerGame > playerPool {
		playersPerGame = playerPool
	}
	picked := rand.Perm(playerPool)[:playersPerGame]

	results := make([]ResultEntry, 0, len(picked))
	for _, idx := range picked {
		correct := rand.Intn(questions + 1)
		bonus := rand.Intn(100)
		results = append(results, ResultEntry{
			PlayerAddress:  playerAddress(idx),
			Score:          int64(correct*1000/questions + bonus),
			CorrectAnswers: int64(correct),
			TotalQuestions: int64(questions),
			TimeBonus:      int64(bonus),
		})
	}
	return ResultsSubmission{LobbyID: lobbyID, Results: results}
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "game-results", "Kafka topic")
	lobbyPrefix := flag.String("lobby-prefix", "lobby", "Lobby id prefix")
	lobbies := flag.Int("lobbies", 20, "Number of distinct lobbies")
	players := flag.Int("players", 200, "Size of the player pool")
	playersPerGame := flag.Int("per-game", 8, "Players per submitted game")
	questions := flag.Int("questions", 10, "Questions per game")
	gamesPerSecond := flag.Int("rate", 5, "Submissions per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	if *lobbies <= 0 || *players <= 0 || *questions <= 0 || *gamesPerSecond <= 0 {
		log.Fatal("lobbies, players, questions and rate must be positive")
	}

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  Game Results Producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:          %s\n", *brokers)
	fmt.Printf("  Topic:            %s\n", *topic)
	fmt.Printf("  Lobbies:          %d\n", *lobbies)
	fmt.Printf("  Player pool:      %d\n", *players)
	fmt.Printf("  Games/sec:        %d\n", *gamesPerSecond)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var successCount, errorCount, sentCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Messages for one lobby share a partition so they are applied in order
	send := func(submission ResultsSubmission) {
		data, err := json.Marshal(submission)
		if err != nil {
			log.Printf("Failed to marshal message: %v", err)
			return
		}
		producer.Input() <- &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(submission.LobbyID),
			Value: sarama.ByteEncoder(data),
		}
		atomic.AddInt64(&sentCount, 1)
	}

	shutdown := func(reason string) {
		fmt.Printf("\n\n%s\n", reason)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\n✓ Completed. Sent: %d, Acked: %d, Errors: %d\n",
			atomic.LoadInt64(&sentCount),
			atomic.LoadInt64(&successCount),
			atomic.LoadInt64(&errorCount),
		)
	}

	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ticker := time.NewTicker(time.Second / time.Duration(*gamesPerSecond))
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	for {
		select {
		case <-sigChan:
			shutdown("Shutting down...")
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				shutdown("Duration reached, shutting down...")
				return
			}
			lobbyID := fmt.Sprintf("%s-%d", *lobbyPrefix, rand.Intn(*lobbies)+1)
			send(randomGame(lobbyID, *players, *playersPerGame, *questions))

		case <-statsTicker.C:
			fmt.Printf("[%s] Sent: %d | Acked: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&sentCount),
				atomic.LoadInt64(&successCount),
				atomic.LoadInt64(&errorCount),
			)
		}
	}
}
