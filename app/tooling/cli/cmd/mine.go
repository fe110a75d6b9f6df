package cmd

import (
	"net/http"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var mineCmd = &cobra.Command{
	Use:     "mine <data>",
	Aliases: []string{"m"},
	Short:   `Mine a new block. eg: mine "Hello World"`,
	Args:    cobra.ExactArgs(1),
	RunE:    mineRun,
}

func init() {
	rootCmd.AddCommand(mineCmd)
}

func mineRun(cmd *cobra.Command, args []string) error {
	spinner, _ := pterm.DefaultSpinner.Start("Mining")

	req := struct {
		Data string `json:"data"`
	}{
		Data: args[0],
	}

	var block database.Block
	if err := call(http.MethodPost, "/v1/blocks/mine", req, &block); err != nil {
		spinner.Fail(err)
		return err
	}

	spinner.Success(pterm.Sprintf("Mined block %d", block.Index))

	return renderBlocks([]database.Block{block})
}
