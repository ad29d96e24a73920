package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"diffreview/buffer"
	"diffreview/engine"
	"diffreview/metrics"
	"diffreview/provider"
	"diffreview/review"
	"diffreview/text"
	"diffreview/types"
)

func newDiffCmd() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "Print the line deltas between two files",
		UsageText: "diffreview diff <original> <modified>",
		Action:    runDiff,
	}
}

func runDiff(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 2 {
		return fmt.Errorf("diff needs exactly two files, got %d", cmd.NArg())
	}
	original, err := os.ReadFile(cmd.Args().Get(0))
	if err != nil {
		return fmt.Errorf("read original: %w", err)
	}
	modified, err := os.ReadFile(cmd.Args().Get(1))
	if err != nil {
		return fmt.Errorf("read modified: %w", err)
	}

	writeDeltas(cmd.Root().Writer, text.ComputeTextDeltas(string(original), string(modified)))
	return nil
}

func writeDeltas(w io.Writer, deltas []text.Delta) {
	if len(deltas) == 0 {
		fmt.Fprintln(w, "no differences")
		return
	}
	for i, d := range deltas {
		fmt.Fprintf(w, "#%d %s -%d,%d +%d,%d\n", i, d.Kind, d.Source.Start+1, d.Source.Count, d.Target.Start+1, d.Target.Count)
		for _, l := range d.SourceLines {
			fmt.Fprintf(w, "-%s\n", l)
		}
		for _, l := range d.TargetLines {
			fmt.Fprintf(w, "+%s\n", l)
		}
	}
}

func newApplyCmd() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "Review a proposal for a region of a file without an editor",
		UsageText: "diffreview apply --file F [--start S --end E] [--proposal P | --mode improve|comment] [--accept i,j] [--all accept|reject] [--write]",
		Description: `The proposal replaces bytes [start, end) of the file and is split into chunks.
Chunks listed with --accept are kept, then --all resolves the rest. Without
--all the remaining chunks are rejected. Without --proposal the configured
provider is asked for one.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "file to edit", Required: true},
			&cli.IntFlag{Name: "start", Usage: "selection start byte offset", Value: 0},
			&cli.IntFlag{Name: "end", Usage: "selection end byte offset (-1 for end of file)", Value: -1},
			&cli.StringFlag{Name: "proposal", Aliases: []string{"p"}, Usage: "file holding the proposed replacement"},
			&cli.BoolFlag{Name: "clean", Usage: "strip markdown fences and lead-in text from the proposal"},
			&cli.StringFlag{Name: "mode", Usage: "generation mode when no proposal is given", Value: string(types.ModeImprove)},
			&cli.IntSliceFlag{Name: "accept", Usage: "chunk indices to keep"},
			&cli.StringFlag{Name: "all", Usage: "resolve remaining chunks: accept or reject"},
			&cli.BoolFlag{Name: "write", Aliases: []string{"w"}, Usage: "save the result to the file instead of printing it"},
		},
		Action: runApply,
	}
}

func runApply(ctx context.Context, cmd *cli.Command) error {
	bulk := cmd.String("all")
	if bulk != "" && bulk != "accept" && bulk != "reject" {
		return fmt.Errorf("--all must be accept or reject, got %q", bulk)
	}

	buf, err := buffer.OpenText(cmd.String("file"))
	if err != nil {
		return err
	}
	content := buf.String()
	sel := review.Span{Start: cmd.Int("start"), End: cmd.Int("end")}
	if sel.End < 0 {
		sel.End = len(content)
	}

	var s *review.Session
	if path := cmd.String("proposal"); path != "" {
		s, err = beginFromFile(buf, sel, path, cmd.Bool("clean"))
	} else {
		var eng *engine.Engine
		eng, err = newApplyEngine(cmd)
		if err != nil {
			return err
		}
		defer eng.Stop()
		s, err = eng.Request(ctx, engine.RequestParams{
			BufferID:  buf.Path(),
			Buffer:    buf,
			FilePath:  buf.Path(),
			FileType:  fileType(buf.Path()),
			Selection: sel,
			Mode:      types.ParseMode(cmd.String("mode")),
		})
	}
	if errors.Is(err, review.ErrNothingToReview) {
		fmt.Fprintln(cmd.Root().ErrWriter, "nothing to review")
		return finishApply(cmd, buf)
	}
	if err != nil {
		return err
	}

	tracker := metrics.NewTracker("", "")
	tracker.TrackShown(s)

	for _, i := range cmd.IntSlice("accept") {
		out, err := s.Accept(i)
		if err != nil {
			return fmt.Errorf("accept chunk %d: %w", i, err)
		}
		tracker.TrackOutcomes(s, out)
	}

	var res review.BulkResult
	switch bulk {
	case "accept":
		res, err = s.AcceptAll()
	case "reject":
		res, err = s.RejectAll()
	default:
		res, err = s.Close()
	}
	if err != nil && !errors.Is(err, review.ErrSessionClosed) {
		return err
	}
	tracker.TrackOutcomes(s, res.Outcomes...)

	counts := tracker.Counts()
	fmt.Fprintf(cmd.Root().ErrWriter, "%d chunks: %d accepted (+%d lines), %d rejected\n",
		counts.Shown, counts.Accepted, counts.LinesAccepted, counts.Rejected)
	return finishApply(cmd, buf)
}

func beginFromFile(buf *buffer.Text, sel review.Span, path string, clean bool) (*review.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read proposal: %w", err)
	}
	content := buf.String()
	if sel.Start < 0 || sel.End < sel.Start || sel.End > len(content) {
		return nil, fmt.Errorf("%w: selection [%d,%d) in file of %d bytes", review.ErrSpanInvalid, sel.Start, sel.End, len(content))
	}
	original := content[sel.Start:sel.End]

	proposal := string(data)
	if clean {
		proposal = provider.CleanSuggestion(proposal)
		if strings.HasSuffix(original, "\n") && !strings.HasSuffix(proposal, "\n") {
			proposal += "\n"
		}
	}
	if provider.IsIdentical(original, proposal) {
		return nil, provider.ErrIdentical
	}
	return review.Begin(buf, original, proposal, sel)
}

func newApplyEngine(cmd *cli.Command) (*engine.Engine, error) {
	config, err := loadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	return engine.NewEngine(provider.NewProvider(&config.Provider), engine.EngineConfig{
		RequestTimeout: config.requestTimeout(),
		TriggerDelay:   config.triggerDelay(),
	}, engine.SystemClock), nil
}

func finishApply(cmd *cli.Command, buf *buffer.Text) error {
	if cmd.Bool("write") {
		return buf.Save()
	}
	_, err := io.WriteString(cmd.Root().Writer, buf.String())
	return err
}

// fileType maps a file extension to the tag used to pick a language adapter
func fileType(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 && i < len(path)-1 && !strings.ContainsRune(path[i:], '/') {
		return strings.ToLower(path[i+1:])
	}
	return ""
}
