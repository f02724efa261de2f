package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/longregen/cogito/internal/audit"
)

// auditCmd inspects the append-only audit trail: wall decisions and the
// execution entries that follow approved ones.
func auditCmd() *cobra.Command {
	var limit int
	var user string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent entries from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readAuditLog(cfg.Audit.Path, user, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No audit records.")
				return nil
			}

			for _, rec := range records {
				fmt.Printf("%s  %s  user=%s tool=%s",
					rec.Timestamp.Format("2006-01-02 15:04:05"),
					rec.AuditID, rec.UserID, rec.ToolName)
				if rec.Stage == audit.StageExecution {
					fmt.Printf(" outcome=%s", rec.Outcome)
					if rec.Verdict != "" {
						fmt.Printf(" verdict=%s", rec.Verdict)
					}
				} else {
					fmt.Printf(" decision=%s", rec.Decision)
					if rec.Tier != "" {
						fmt.Printf(" tier=%s", rec.Tier)
					}
					if rec.Code != "" {
						fmt.Printf(" code=%s", rec.Code)
					}
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	cmd.Flags().StringVarP(&user, "user", "u", "", "filter by user ID")
	return cmd
}

// readAuditLog returns the newest matching records, oldest first. Lines that
// fail to decode are skipped; the log is append-only JSONL.
func readAuditLog(path, user string, limit int) ([]*audit.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var records []*audit.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var rec audit.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		if user != "" && rec.UserID != user {
			continue
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}
