package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jpokornyiii/ntcore-client/internal/wire"
	"github.com/jpokornyiii/ntcore-client/pkg/client"
	"github.com/spf13/cobra"
)

var rpcParams []string

var rpcCmd = &cobra.Command{
	Use:   "rpc <definition-id>",
	Short: "Invoke an RPC by its entry id and print the results",
	Long: `Invoke the RPC definition at the given entry id, passing each
--param as a STRING-typed parameter, and print the returned values.`,
	Args: cobra.ExactArgs(1),
	RunE: runRPC,
}

func init() {
	rpcCmd.Flags().StringArrayVar(&rpcParams, "param", nil, "a string parameter to pass (repeatable)")
}

func runRPC(cmd *cobra.Command, args []string) error {
	defID, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return fmt.Errorf("parse definition id: %w", err)
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

	params := make([]wire.Value, len(rpcParams))
	for i, p := range rpcParams {
		params[i] = wire.StringValue(p)
	}

	callCtx, callCancel := context.WithTimeout(ctx, cfg.RPCTimeout)
	defer callCancel()

	results, outcome, err := c.CallRPC(callCtx, uint16(defID), params)
	if err != nil {
		return fmt.Errorf("rpc %d: %w", defID, err)
	}

	p, err := newPrinter()
	if err != nil {
		return err
	}
	p.Println(fmt.Sprintf("outcome: %s", outcome))
	for i, v := range results {
		p.Println(fmt.Sprintf("  [%d] %s = %s", i, v.Type, formatValue(v)))
	}
	return nil
}
