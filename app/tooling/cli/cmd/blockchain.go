package cmd

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var blockchainCmd = &cobra.Command{
	Use:     "blockchain",
	Aliases: []string{"bc"},
	Short:   "See the current state of the blockchain.",
	Args:    cobra.NoArgs,
	RunE:    blockchainRun,
}

func init() {
	rootCmd.AddCommand(blockchainCmd)
}

func blockchainRun(cmd *cobra.Command, args []string) error {
	var chain []database.Block
	if err := call(http.MethodGet, "/v1/blocks", nil, &chain); err != nil {
		return err
	}

	return renderBlocks(chain)
}

func renderBlocks(blocks []database.Block) error {
	data := pterm.TableData{
		{"Index", "Timestamp", "Data", "Nonce", "Hash", "Previous Hash"},
	}

	for _, b := range blocks {
		data = append(data, []string{
			strconv.FormatUint(b.Index, 10),
			time.UnixMilli(b.Timestamp).UTC().Format(time.RFC3339),
			b.Data,
			strconv.FormatUint(b.Nonce, 10),
			b.Hash,
			b.PreviousHash,
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
