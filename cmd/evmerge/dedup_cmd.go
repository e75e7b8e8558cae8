package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/evmerge/internal/input"
)

func newDedupLinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedup-lines <in> <out>",
		Short: "按行去重（保留首次出现的行，逐字节比较）",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := input.DedupLines(args[0], args[1])
			if err != nil {
				return withCode(exitValidation, fmt.Errorf("去重失败：%w", err))
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "完成：lines=%d unique=%d dropped=%d\n", res.Lines, res.Unique, res.Dropped)
			return nil
		},
	}
}
