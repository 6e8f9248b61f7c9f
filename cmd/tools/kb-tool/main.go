// cmd/tools/kb-tool/main.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"inquiry-core/pkg/kbase"
)

type options struct {
	path       string
	url        string
	timeout    time.Duration
	outputText bool
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "kb-tool",
		Short: "Inspect and maintain inquiry knowledge bases",
		Long: `kb-tool works on a knowledge base document: the embedded default, a local
file (--kb) or a remote URL (--url).

Examples:
  kb-tool validate --kb kb.json
  kb-tool stats
  kb-tool resolve 脑袋疼 --type Symptom
  kb-tool map 心悸 失眠 多梦 --age 45
  kb-tool add-alias --kb kb.json sym_headache 头疼
  kb-tool index --es-url http://localhost:9200 --index tcm-entities
  kb-tool purge-cache --redis-addr localhost:6379`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.path, "kb", "", "Path to a knowledge base file (default: embedded)")
	root.PersistentFlags().StringVar(&opts.url, "url", "", "URL of a remote knowledge base")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "Fetch timeout for --url")
	root.PersistentFlags().BoolVar(&opts.outputText, "text", false, "Human-readable output (default is JSON)")

	root.AddCommand(
		newValidateCmd(opts),
		newStatsCmd(opts),
		newResolveCmd(opts),
		newMapCmd(opts),
		newAddAliasCmd(opts),
		newIndexCmd(opts),
		newPurgeCacheCmd(opts),
	)
	return root
}

func (o *options) source() kbase.Source {
	return kbase.Source{Path: o.path, URL: o.url, Timeout: o.timeout}
}

// output writes result as indented JSON, or with --text as a plain rendering.
func (o *options) output(cmd *cobra.Command, result interface{}) error {
	w := cmd.OutOrStdout()
	if o.outputText {
		_, err := fmt.Fprintf(w, "%+v\n", result)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
