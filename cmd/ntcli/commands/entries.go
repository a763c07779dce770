package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jpokornyiii/ntcore-client/internal/cli/output"
	"github.com/jpokornyiii/ntcore-client/internal/table"
	"github.com/jpokornyiii/ntcore-client/internal/wire"
	"github.com/jpokornyiii/ntcore-client/pkg/client"
	"github.com/spf13/cobra"
)

var connectTimeout = 5 * time.Second

// entryTable adapts a []table.Entry to output.TableRenderer.
type entryTable []table.Entry

func (e entryTable) Headers() []string { return []string{"ID", "NAME", "TYPE", "SEQ", "VALUE", "PERSISTENT"} }

func (e entryTable) Rows() [][]string {
	rows := make([][]string, 0, len(e))
	for _, ent := range e {
		rows = append(rows, []string{
			strconv.Itoa(int(ent.ID)),
			ent.Name,
			ent.Type.String(),
			strconv.Itoa(int(ent.Seq)),
			formatValue(ent.Value),
			strconv.FormatBool(ent.Flags.Persistent()),
		})
	}
	return rows
}

func formatValue(v wire.Value) string {
	switch v.Type {
	case wire.TypeBoolean:
		return strconv.FormatBool(v.Bool)
	case wire.TypeDouble:
		return strconv.FormatFloat(v.DoubleVal, 'g', -1, 64)
	case wire.TypeString:
		return v.Str
	case wire.TypeRaw:
		return fmt.Sprintf("<%d bytes>", len(v.RawBytes))
	case wire.TypeBooleanArray:
		return fmt.Sprintf("%v", v.BoolArray)
	case wire.TypeDoubleArray:
		return fmt.Sprintf("%v", v.DoubleArray)
	case wire.TypeStringArray:
		return fmt.Sprintf("%v", v.StringArray)
	case wire.TypeRPC:
		if v.RPCDef != nil {
			return v.RPCDef.Name
		}
		return "<rpc>"
	default:
		return ""
	}
}

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Connect and print the live entry table",
	Long: `Connect to an ntcore server, wait for the handshake to complete,
and print every entry currently known to the client.`,
	RunE: runEntries,
}

func runEntries(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	c, err := connectAndWait(ctx, cfg, client.Callbacks{}, connectTimeout)
	if err != nil {
		return err
	}
	defer c.Close()

	p, err := newPrinter()
	if err != nil {
		return err
	}

	entries := c.Entries()
	if p.Format() == output.FormatTable && len(entries) == 0 {
		p.Println("(no entries)")
		return nil
	}
	return p.Print(entryTable(entries))
}

var getCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print a single entry by name",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	c, err := connectAndWait(ctx, cfg, client.Callbacks{}, connectTimeout)
	if err != nil {
		return err
	}
	defer c.Close()

	entry, ok := c.EntryByName(args[0])
	if !ok {
		return fmt.Errorf("no such entry: %q", args[0])
	}

	p, err := newPrinter()
	if err != nil {
		return err
	}
	return p.Print(entryTable{entry})
}

var (
	setBool       bool
	setDoubleFlag bool
	setPersistent bool
)

var setCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Propose a string-typed entry value (use flags for other types)",
	Long: `Propose a value for name. By default the value argument is sent as
a STRING entry; pass --bool or --double to send a differently-typed value
instead.`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func init() {
	setCmd.Flags().BoolVar(&setBool, "bool", false, "interpret <value> as a boolean")
	setCmd.Flags().BoolVar(&setDoubleFlag, "double", false, "interpret <value> as a double")
	setCmd.Flags().BoolVar(&setPersistent, "persistent", false, "set the persistent flag on the new entry")
}

func runSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name, raw := args[0], args[1]
	var value wire.Value
	switch {
	case setBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse bool: %w", err)
		}
		value = wire.BoolValue(b)
	case setDoubleFlag:
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parse double: %w", err)
		}
		value = wire.DoubleValue(d)
	default:
		value = wire.StringValue(raw)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	c, err := connectAndWait(ctx, cfg, client.Callbacks{}, connectTimeout)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Propose(name, value.Type, value, setPersistent); err != nil {
		return fmt.Errorf("propose %q: %w", name, err)
	}
	return nil
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Request deletion of an entry by numeric id",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return fmt.Errorf("parse id: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	c, err := connectAndWait(ctx, cfg, client.Callbacks{}, connectTimeout)
	if err != nil {
		return err
	}
	defer c.Close()

	return c.Delete(uint16(id))
}
