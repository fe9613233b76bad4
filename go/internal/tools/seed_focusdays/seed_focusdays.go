package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/focusd/go/internal/dbconfig"
)

// FocusDaySeed mirrors the JSON snapshot format
type FocusDaySeed struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	Day               string `json:"day"`
	CompletedMinutes  int    `json:"completed_minutes"`
	SessionsCompleted int    `json:"sessions_completed"`
	AchievedGoal      bool   `json:"achieved_goal"`
	LastUpdated       string `json:"last_updated"`
}

func main() {
	// 1) Load the JSON snapshot
	data, err := os.ReadFile("go/internal/assets/focusdays.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var days []FocusDaySeed
	if err := json.Unmarshal(data, &days); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Upsert and count
	var (
		total    = len(days)
		inserted int
		skipped  int
		errs     int
	)

	for _, d := range days {
		cmdTag, err := pool.Exec(context.Background(), `
            INSERT INTO focus_days (
              id, user_id, day, completed_minutes, active_minutes,
              sessions_completed, achieved_goal, last_updated
            ) VALUES (
              $1,$2,$3,$4,0,$5,$6,$7
            )
            ON CONFLICT (user_id, day) DO NOTHING
        `,
			d.ID, d.UserID, d.Day, d.CompletedMinutes,
			d.SessionsCompleted, d.AchievedGoal, d.LastUpdated,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting focus day %s: %v\n", d.ID, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Focus days seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}
