package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"say-hi/domain"
)

// Read-only inspector for the chat databases. It walks a key prefix and
// renders one row per record, decoding the value when the prefix maps to a
// known record type.
func main() {
	dbPath := flag.String("db", "/tmp/say-hi", "Path to badger DB")
	prefix := flag.String("prefix", "", "Prefix to scan (user:, conv:, msg:, empty for all)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Detail"})
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
				kind, detail := describe(key, v)
				table.Append([]string{key, kind, detail})
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

// describe decodes the value according to the key prefix. Index entries
// hold a bare id, so their raw value is the detail.
func describe(key string, value []byte) (string, string) {
	switch {
	case strings.HasPrefix(key, "userid:"), strings.HasPrefix(key, "pair:"),
		strings.HasPrefix(key, "userconv:"):
		return color.Gray.Sprint("INDEX"), string(value)

	case strings.HasPrefix(key, "user:"):
		var u domain.User
		if err := json.Unmarshal(value, &u); err != nil {
			return color.Red.Sprint("CORRUPT"), err.Error()
		}
		return color.Green.Sprint("USER"),
			fmt.Sprintf("%s <%s> %s/%s", u.Name, u.Email, u.Role, u.Status)

	case strings.HasPrefix(key, "conv:"):
		var c domain.Conversation
		if err := json.Unmarshal(value, &c); err != nil {
			return color.Red.Sprint("CORRUPT"), err.Error()
		}
		return color.Cyan.Sprint("CONV"),
			fmt.Sprintf("%s <-> %s latest=%q updated=%s",
				c.Users[0], c.Users[1], c.LatestMessage.Text, c.UpdatedAt.Format("15:04:05"))

	case strings.HasPrefix(key, "msg:"):
		var m domain.Message
		if err := json.Unmarshal(value, &m); err != nil {
			return color.Red.Sprint("CORRUPT"), err.Error()
		}
		seen := "unseen"
		if m.Seen {
			seen = "seen"
		}
		return color.Yellow.Sprint("MSG"),
			fmt.Sprintf("from=%s %s %q", m.SenderID, seen, m.Summary())

	default:
		return "UNKNOWN", fmt.Sprintf("%d bytes", len(value))
	}
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)
	return badger.Open(opts)
}
