package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"inferd/internal/client"
	"inferd/pkg/types"
)

type chatOptions struct {
	url          string
	model        string
	maxLength    int
	prompt       string
	maxNewTokens int
	temperature  float32
	doSample     bool
	stop         string
}

func newChatCmd() *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a running server over the WebSocket API",
		Example: "  inferd chat --prompt 'A cat sat on'\n" +
			"  echo 'Hello' | inferd chat --url http://127.0.0.1:8080 --model echo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", envOr("INFERD_URL", "http://127.0.0.1:8080"), "Server base URL")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model key or alias (empty selects the default)")
	cmd.Flags().IntVar(&opts.maxLength, "max-length", 512, "Session max_length in tokens")
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "Send one prompt and exit; otherwise read prompts from stdin")
	cmd.Flags().IntVar(&opts.maxNewTokens, "max-new-tokens", 0, "Cap on generated tokens per turn (0 leaves it to the server)")
	cmd.Flags().Float32Var(&opts.temperature, "temperature", 1, "Sampling temperature")
	cmd.Flags().BoolVar(&opts.doSample, "do-sample", false, "Sample instead of greedy decoding")
	cmd.Flags().StringVar(&opts.stop, "stop", client.DefaultStopSequence, "Stop sequence ending a turn")
	return cmd
}

func runChat(cmd *cobra.Command, opts *chatOptions) error {
	c, err := client.Dial(cmd.Context(), opts.url)
	if err != nil {
		return err
	}
	defer c.Close()
	if _, err := c.Open(opts.model, opts.maxLength); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer c.CloseSession()

	out := cmd.OutOrStdout()
	if opts.prompt != "" {
		return chatTurn(c, opts, opts.prompt, out)
	}
	sc := bufio.NewScanner(cmd.InOrStdin())
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := chatTurn(c, opts, line, out); err != nil {
			return err
		}
	}
	return sc.Err()
}

func chatTurn(c *client.Client, opts *chatOptions, prompt string, out io.Writer) error {
	stop := opts.stop
	temp := opts.temperature
	msg := types.ClientMessage{
		Inputs:       &prompt,
		DoSample:     types.FlexBool(opts.doSample),
		Temperature:  &temp,
		StopSequence: &stop,
	}
	if opts.maxNewTokens > 0 {
		n := opts.maxNewTokens
		msg.MaxNewTokens = &n
	}
	_, err := c.Generate(msg, func(f types.Frame) {
		fmt.Fprint(out, f.Outputs)
	})
	fmt.Fprintln(out)
	return err
}
