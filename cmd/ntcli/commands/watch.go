package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jpokornyiii/ntcore-client/internal/cli/prompt"
	"github.com/jpokornyiii/ntcore-client/internal/cli/timeutil"
	"github.com/jpokornyiii/ntcore-client/internal/table"
	"github.com/jpokornyiii/ntcore-client/internal/wire"
	"github.com/jpokornyiii/ntcore-client/pkg/client"
	"github.com/spf13/cobra"
)

var watchForce bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail connection state and entry events until interrupted",
	Long: `Connect to a server and print connection-state transitions and
entry assignment/update/delete/clear events as they arrive. Press Ctrl+C
to stop; unless --force is given you'll be asked to confirm disconnecting.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVarP(&watchForce, "force", "f", false, "skip the disconnect confirmation")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p, err := newPrinter()
	if err != nil {
		return err
	}

	var connectedAt time.Time
	var connectedOnce sync.Once

	cb := client.Callbacks{
		ConnectionStateChanged: func(s client.State) {
			p.Println(fmt.Sprintf("[state] %s", s))
			if s == client.Ready {
				connectedOnce.Do(func() { connectedAt = time.Now() })
			}
		},
		EntryAssigned: func(e table.Entry) {
			p.Println(fmt.Sprintf("[assigned] id=%d name=%q type=%s value=%s", e.ID, e.Name, e.Type, formatValue(e.Value)))
		},
		EntryUpdated: func(e table.Entry, prev wire.Value) {
			p.Println(fmt.Sprintf("[updated] id=%d name=%q value=%s (was %s)", e.ID, e.Name, formatValue(e.Value), formatValue(prev)))
		},
		EntryFlagsUpdated: func(e table.Entry) {
			p.Println(fmt.Sprintf("[flags] id=%d name=%q persistent=%t", e.ID, e.Name, e.Flags.Persistent()))
		},
		EntryDeleted: func(id uint16, name string) {
			p.Println(fmt.Sprintf("[deleted] id=%d name=%q", id, name))
		},
		EntriesCleared: func() {
			p.Println("[cleared] all entries")
		},
		RPCResponse: func(defID, uniqueID uint16, results []wire.Value) {
			p.Println(fmt.Sprintf("[rpc response] def=%d unique=%d results=%d", defID, uniqueID, len(results)))
		},
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	c, err := connectAndWait(ctx, cfg, cb, connectTimeout)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	signal.Stop(sigCh)

	if !watchForce {
		ok, err := prompt.Confirm("Disconnect", true)
		if err != nil && err != prompt.ErrAborted {
			return err
		}
		if err == prompt.ErrAborted || !ok {
			p.Println("still connected, press Ctrl+C again to force disconnect")
			<-sigCh
		}
	}

	if !connectedAt.IsZero() {
		p.Println(fmt.Sprintf("connected for %s", timeutil.FormatUptime(time.Since(connectedAt).String())))
	}

	c.Close()
	return nil
}
