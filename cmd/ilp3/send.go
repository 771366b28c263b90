package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/totegamma/ilp3"
	"github.com/totegamma/ilp3/client"
)

var (
	sendConnector   string
	sendAmount      string
	sendExpiresIn   time.Duration
	sendCondition   string
	sendDestination string
	sendData        string
	sendStream      bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Post a transfer to a connector and print the fulfillment",
	Example: `  ilp3 send --connector "http://<token>@localhost:3000" \
    --amount 1000 --condition 0xabc --destination test.receiver --data hello`,
	RunE: runSend,
}

func init() {
	f := sendCmd.Flags()
	f.StringVar(&sendConnector, "connector", "", "connector URI, optionally with the credential as user-info")
	f.StringVar(&sendAmount, "amount", "", "transfer amount")
	f.DurationVar(&sendExpiresIn, "expires-in", 30*time.Second, "transfer expiry relative to now")
	f.StringVar(&sendCondition, "condition", "", "condition")
	f.StringVar(&sendDestination, "destination", "", "destination address")
	f.StringVar(&sendData, "data", "", "transfer data")
	f.BoolVar(&sendStream, "stream", false, "stream data from stdin and the response to stdout")
	_ = sendCmd.MarkFlagRequired("connector")
	_ = sendCmd.MarkFlagRequired("amount")
	_ = sendCmd.MarkFlagRequired("condition")
	_ = sendCmd.MarkFlagRequired("destination")
}

func runSend(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseUint(sendAmount, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", sendAmount)
	}

	data := ilp3.NewBufferedData([]byte(sendData))
	if sendStream {
		data = ilp3.NewStreamData(io.NopCloser(os.Stdin))
	}

	c := client.New(client.Options{
		Timeout:     conf.Sender.TimeoutDuration,
		TokenWindow: conf.Sender.TokenWindowDuration,
		UserAgent:   conf.Sender.UserAgent,
	})

	result, err := c.Send(cmd.Context(), sendConnector, &ilp3.Transfer{
		Amount:      amount,
		Expiry:      time.Now().Add(sendExpiresIn),
		Condition:   sendCondition,
		Destination: sendDestination,
		Data:        data,
	}, sendStream)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if result.Fulfilled() {
		fmt.Fprintf(out, "fulfillment: %s\n", result.Fulfillment)
	} else {
		fmt.Fprintln(out, "no fulfillment")
	}

	rc, err := result.Data.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	if !sendStream {
		fmt.Fprint(out, "data: ")
	}
	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	if !sendStream {
		fmt.Fprintln(out)
	}
	return nil
}
