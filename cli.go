package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/segfetch/segfetch/internal/clog"
	"github.com/segfetch/segfetch/internal/humanize"
	"github.com/segfetch/segfetch/internal/job"
)

const version = "1.0.0"

const banner = `
   ________  ____  __        ____                      __                __
  / ____/ / / / /_/ /_____  / __ \____ _      ______  / /___  ____ _____/ /__  _____
 / /   / /_/ / __/ __/ __ \/ / / / __ \ | /| / / __ \/ / __ \/ __ \/ __  / _ \/ ___/
/ /___/ __  / /_/ /_/ /_/ / /_/ / /_/ / |/ |/ / / / / / /_/ / /_/ / /_/ /  __/ /
\____/_/ /_/\__/\__/ .___/_____/\____/|__/|__/_/ /_/_/\____/\__,_/\__,_/\___/_/
                  /_/
segfetch - a small parallel HTTP/HTTPS file downloader
`

func printVersion() {
	fmt.Printf("segfetch version %s\n", color.BlueString(version))
}

func printUsage(prog string) {
	fmt.Print(banner)
	fmt.Println("Run with no arguments to enter the interactive menu.")
	fmt.Printf("Usage: %s [options]\n\n", prog)
	fmt.Println("Options:")
	fmt.Println("  -v, --version                     print version")
	fmt.Println("  -h, --help                         print this help")
	fmt.Println("  -t, --test                         run the built-in self-test URL list")
	fmt.Println("  -d, --download <URL> [name] [dir]  download URL")
	fmt.Println("      -m, --multithread [N]           use the multi-segment engine (default: 4, max 16)")
	fmt.Println("      -proxy <addr>                    SOCKS5 (host:port) or HTTP CONNECT (http://host:port) proxy")
	fmt.Println("      -rate <bw>                       bandwidth cap, e.g. 512kB or 2MiB")
	fmt.Println("      -skip-tls                        accept self-signed / unvalidated TLS certificates")
	fmt.Println()
	fmt.Printf("  %s -d http://example.com/file.zip\n", prog)
	fmt.Printf("  %s -d http://example.com/file.zip myfile.zip\n", prog)
	fmt.Printf("  %s -d http://example.com/file.zip myfile.zip /tmp -m 8\n", prog)
	fmt.Println()
	fmt.Println("Exit codes: 0 success; negative codes mirror internal error kinds")
	fmt.Println("(URL_PARSE=-1, DNS=-2, CONNECTION=-3, HTTP_REQUEST=-4, HTTP_RESPONSE=-5,")
	fmt.Println(" FILE_OPEN=-6, FILE_WRITE=-7, NETWORK=-8, MEMORY=-9).")
}

// downloadArgs is what parseDownloadArgs extracts from a free-form
// argument list following -d/--download <URL>.
type downloadArgs struct {
	url, name, dir string
	threads        int
	rateLimit      int64
	proxy          string
	skipTLS        bool
}

// parseDownloadArgs scans args the way the original CLI does: the URL is
// mandatory and first; name and dir are the next two non-flag tokens in
// order; -m/--multithread optionally takes a following numeric thread
// count; -proxy, -rate, -skip-tls are recognized anywhere else.
func parseDownloadArgs(args []string) (*downloadArgs, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("a download URL is required")
	}
	out := &downloadArgs{url: args[0]}
	rest := args[1:]

	for i := 0; i < len(rest); i++ {
		tok := rest[i]
		switch {
		case tok == "-m" || tok == "--multithread":
			out.threads = 4
			if i+1 < len(rest) {
				if n, err := strconv.Atoi(rest[i+1]); err == nil {
					out.threads = n
					i++
				}
			}
		case tok == "-proxy" && i+1 < len(rest):
			out.proxy = rest[i+1]
			i++
		case tok == "-rate" && i+1 < len(rest):
			rate, err := humanize.ParseRate(rest[i+1])
			if err != nil {
				return nil, fmt.Errorf("invalid -rate value %q: %w", rest[i+1], err)
			}
			out.rateLimit = rate
			i++
		case tok == "-skip-tls":
			out.skipTLS = true
		case strings.HasPrefix(tok, "-"):
			clog.Warnf("ignoring unknown option %q", tok)
		default:
			if out.name == "" {
				out.name = tok
			} else if out.dir == "" {
				out.dir = tok
			} else {
				clog.Warnf("ignoring extra argument %q", tok)
			}
		}
	}
	return out, nil
}

func runDownloadCLI(ctx runCtx, args []string) int {
	parsed, err := parseDownloadArgs(args)
	if err != nil {
		clog.Errorf("%v", err)
		return -1
	}

	opts := job.Options{
		Threads:              parsed.threads,
		RateLimitBytesPerSec: parsed.rateLimit,
		Proxy:                parsed.proxy,
		SkipTLSVerify:        parsed.skipTLS,
	}

	res, err := job.Download(ctx.ctx, parsed.url, parsed.name, parsed.dir, opts)
	if err != nil {
		code := errExitCode(err)
		clog.Errorf("download failed (exit %d): %v", code, err)
		return code
	}

	clog.Donef("saved %s (%s) to %s", parsed.url, humanize.Bytes(res.BytesWritten), res.OutputPath)
	return 0
}

// runInteractive implements the no-argument menu: prompt for a URL, then
// drive the same download path as -d.
func runInteractive(ctx runCtx) int {
	fmt.Print(banner)
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("URL to download: ")
	line, _ := reader.ReadString('\n')
	url := strings.TrimSpace(line)
	if url == "" {
		clog.Errorf("no URL entered")
		return -1
	}

	fmt.Print("Output file name (blank for default): ")
	name, _ := reader.ReadString('\n')

	fmt.Print("Output directory (blank for current directory): ")
	dir, _ := reader.ReadString('\n')

	fmt.Print("Use multi-segment download? [y/N]: ")
	multiLine, _ := reader.ReadString('\n')
	threads := 0
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(multiLine)), "y") {
		threads = 4
	}

	res, err := job.Download(ctx.ctx, url, strings.TrimSpace(name), strings.TrimSpace(dir), job.Options{Threads: threads})
	if err != nil {
		code := errExitCode(err)
		clog.Errorf("download failed (exit %d): %v", code, err)
		return code
	}
	clog.Donef("saved %s to %s", humanize.Bytes(res.BytesWritten), res.OutputPath)
	return 0
}
