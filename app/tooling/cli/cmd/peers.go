package cmd

import (
	"net/http"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type peerInfo struct {
	Endpoint   string `json:"endpoint"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	ListenPort int    `json:"listenPort"`
}

var peersCmd = &cobra.Command{
	Use:     "peers",
	Aliases: []string{"p"},
	Short:   "Get the list of connected peers.",
	Args:    cobra.NoArgs,
	RunE:    peersRun,
}

var connectCmd = &cobra.Command{
	Use:     "connect <host> <port>",
	Aliases: []string{"c"},
	Short:   "Connect to a new peer. eg: connect localhost 6001",
	Args:    cobra.ExactArgs(2),
	RunE:    connectRun,
}

func init() {
	rootCmd.AddCommand(peersCmd)
	rootCmd.AddCommand(connectCmd)
}

func peersRun(cmd *cobra.Command, args []string) error {
	var peers []peerInfo
	if err := call(http.MethodGet, "/v1/peers", nil, &peers); err != nil {
		return err
	}

	if len(peers) == 0 {
		pterm.Info.Println("No peers connected")
		return nil
	}

	data := pterm.TableData{
		{"Endpoint", "Remote Address", "Listen Port"},
	}
	for _, p := range peers {
		listen := "-"
		if p.ListenPort > 0 {
			listen = strconv.Itoa(p.ListenPort)
		}
		data = append(data, []string{p.Endpoint, pterm.Sprintf("%s:%d", p.Host, p.Port), listen})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func connectRun(cmd *cobra.Command, args []string) error {
	port, err := strconv.Atoi(args[1])
	if err != nil {
		return err
	}

	req := struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}{
		Host: args[0],
		Port: port,
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := call(http.MethodPost, "/v1/peers", req, &resp); err != nil {
		return err
	}

	pterm.Success.Println(resp.Status)

	return nil
}
