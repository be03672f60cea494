package main

import (
	"fmt"

	"github.com/imkira/go-task"

	"github.com/segfetch/segfetch/internal/clog"
	"github.com/segfetch/segfetch/internal/humanize"
	"github.com/segfetch/segfetch/internal/job"
)

// selfTestURLs is the fixed self-test fixture §6 names for -t/--test: a
// handful of stable, range-friendly public test files (up to 100 MB) that exercise both
// the single-stream and multi-segment paths.
var selfTestURLs = []string{
	"https://speed.hetzner.de/100MB.bin",
	"https://ash-speed.hetzner.com/100MB.bin",
	"https://proof.ovh.net/files/10Mb.dat",
}

// runSelfTest downloads each built-in fixture URL as a serial go-task
// group, one task per URL, mirroring the teacher's file-of-URLs batch
// runner in main.go but against a fixed list instead of a -file argument.
func runSelfTest(ctx runCtx) int {
	group := task.NewSerialGroup()
	results := make([]error, len(selfTestURLs))

	for i, url := range selfTestURLs {
		i, url := i, url
		run := func(t task.Task, tctx task.Context) {
			name := fmt.Sprintf("selftest-%d", i)
			res, err := job.Download(ctx.ctx, url, name, "", job.Options{Threads: 4})
			if err != nil {
				results[i] = err
				clog.Warnf("self-test %q failed: %v", url, err)
				return
			}
			clog.Donef("self-test %q ok: %s in %s", url, humanize.Bytes(res.BytesWritten), humanize.Duration(res.Elapsed))
		}
		group.AddChild(task.NewTaskWithFunc(run))
	}
	group.Run(nil)

	for _, err := range results {
		if err != nil {
			return errExitCode(err)
		}
	}
	return 0
}
