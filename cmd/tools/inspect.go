package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"guidance-lab/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// Offline inspector for the record store. Opens the database read-only so
// it can run next to a live core, decodes the CBOR rows under the chosen
// prefix, and renders them as a table.
func main() {
	dbPath := flag.String("db", "./badger", "Path to badger DB")
	prefix := flag.String("prefix", "session:", "Prefix to scan (session:, msg:, ntf:, presence:, avail:, stats:, slot:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	header := color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf("Scanning %q in %s", *prefix, *dbPath))
	fmt.Println(header)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			err := item.Value(func(v []byte) error {
				table.Append([]string{key, describe(key, v)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// describe decodes the value according to the key namespace. Decoding
// failures are reported inline instead of aborting the whole scan.
func describe(key string, val []byte) string {
	switch {
	case strings.HasPrefix(key, "session:"):
		var row repositories.SessionRow
		if err := cbor.Unmarshal(val, &row); err != nil {
			return decodeErr(err)
		}
		scheduled := "-"
		if row.ScheduledAt != nil {
			scheduled = row.ScheduledAt.Format("2006-01-02 15:04")
		}
		return fmt.Sprintf("%s [%s] topic=%q requester=%s agent=%s scheduled=%s",
			row.Number, row.Status, truncate(row.Topic, 40), row.RequesterID, row.AgentID, scheduled)

	case strings.HasPrefix(key, "msg:"):
		var row repositories.MessageRow
		if err := cbor.Unmarshal(val, &row); err != nil {
			return decodeErr(err)
		}
		return fmt.Sprintf("%s %s(%s) read=%t %q",
			row.CreatedAt.Format("15:04:05"), row.SenderID, row.SenderType, row.IsRead, truncate(row.Content, 60))

	case strings.HasPrefix(key, "ntf:"):
		var row repositories.NotificationRow
		if err := cbor.Unmarshal(val, &row); err != nil {
			return decodeErr(err)
		}
		return fmt.Sprintf("%s [%s] read=%t %q", row.CreatedAt.Format("15:04:05"), row.Type, row.IsRead, truncate(row.Title, 50))

	case strings.HasPrefix(key, "presence:"):
		var row repositories.PresenceRow
		if err := cbor.Unmarshal(val, &row); err != nil {
			return decodeErr(err)
		}
		return fmt.Sprintf("online=%t last_seen=%s", row.IsOnline, row.LastSeenAt.Format("15:04:05"))

	case strings.HasPrefix(key, "avail:"):
		var row repositories.AvailabilityRow
		if err := cbor.Unmarshal(val, &row); err != nil {
			return decodeErr(err)
		}
		return fmt.Sprintf("available=%t %s-%s", row.IsAvailable, row.StartTime, row.EndTime)

	case strings.HasPrefix(key, "stats:"):
		var row repositories.StatsRow
		if err := cbor.Unmarshal(val, &row); err != nil {
			return decodeErr(err)
		}
		return fmt.Sprintf("completed=%d refreshed=%s", row.Completed, row.RefreshedAt.Format("15:04:05"))

	case strings.HasPrefix(key, "slot:"):
		// Reservation markers carry no value; the key is the data.
		return "reserved"

	default:
		return fmt.Sprintf("%d bytes", len(val))
	}
}

func decodeErr(err error) string {
	return color.Red.Render(fmt.Sprintf("decode error: %v", err))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
