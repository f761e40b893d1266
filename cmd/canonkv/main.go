// Command canonkv is the CLI front-end for a running canonkv server: a
// thin HTTP client for register/get/set/delete/list-types/list-keys, plus
// a serve subcommand that hosts internal/httpapi itself (optionally over
// HTTP/3, optionally with internal/watch's dev loop).
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/canonkv/canonkv/internal/codec"
	"github.com/canonkv/canonkv/internal/config"
	"github.com/canonkv/canonkv/internal/engine"
	"github.com/canonkv/canonkv/internal/httpapi"
	"github.com/canonkv/canonkv/internal/store"
	"github.com/canonkv/canonkv/internal/transport"
	"github.com/canonkv/canonkv/internal/watch"
	"github.com/canonkv/canonkv/internal/witlang"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	sub, args := os.Args[1], os.Args[2:]
	var err error
	switch sub {
	case "help", "-h", "--help":
		usage()
	case "register":
		err = cmdRegister(args)
	case "get":
		err = cmdGet(args)
	case "set":
		err = cmdSet(args)
	case "delete":
		err = cmdDelete(args)
	case "list-types":
		err = cmdListTypes(args)
	case "list-keys":
		err = cmdListKeys(args)
	case "serve":
		err = cmdServe(args)
	default:
		fmt.Fprintf(os.Stderr, "canonkv: unknown subcommand %q\n", sub)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "canonkv: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: canonkv <subcommand> [flags]

Subcommands:
  register [--type=name] [--force] [--file=path] <keyspace>   register a type, IDL from --file or stdin
  get <keyspace> <key>                                        read and print a value
  set <keyspace> <key> <value-text>                           write a value
  delete <keyspace> <key>                                     delete a value
  delete --type [--data] <keyspace>                           delete a registered type
  list-types                                                  list every registered keyspace
  list-keys [--prefix=] [--start=] [--end=] [--limit=] <keyspace>
  serve [--addr=:8443] [--http3] [--cert=path --key=path] [--watch=dir] [--config=path]

Global client flags (register/get/set/delete/list-*): --addr, --http3.
Flags go before the positional arguments.
`)
}

func clientFlags(fs *flag.FlagSet) (addr *string, http3Flag *bool) {
	addr = fs.String("addr", "https://127.0.0.1:8443", "canonkv server base URL")
	http3Flag = fs.Bool("http3", false, "use HTTP/3 to reach the server")
	return
}

func httpClient(useHTTP3 bool) *http.Client {
	if !useHTTP3 {
		return &http.Client{Timeout: 30 * time.Second}
	}
	return transport.HTTP3Client(&tls.Config{InsecureSkipVerify: true}, 30*time.Second)
}

func cmdRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	addr, http3Flag := clientFlags(fs)
	typeName := fs.String("type", "", "exported type name, if the IDL declares more than one")
	force := fs.Bool("force", false, "replace an existing registration")
	file := fs.String("file", "", "path to IDL source (default: read stdin)")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("register: missing <keyspace>")
	}
	ks := fs.Arg(0)

	var body io.Reader = os.Stdin
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(data))
	}

	url := fmt.Sprintf("%s/keyspaces/%s?force=%t", *addr, ks, *force)
	if *typeName != "" {
		url += "&type=" + *typeName
	}
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return err
	}
	return doAndPrint(httpClient(*http3Flag), req)
}

func cmdGet(args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	addr, http3Flag := clientFlags(fs)
	_ = fs.Parse(args)
	if fs.NArg() < 2 {
		return fmt.Errorf("get: usage: get <keyspace> <key>")
	}
	url := fmt.Sprintf("%s/keyspaces/%s/values/%s", *addr, fs.Arg(0), fs.Arg(1))
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return doAndPrint(httpClient(*http3Flag), req)
}

func cmdSet(args []string) error {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	addr, http3Flag := clientFlags(fs)
	_ = fs.Parse(args)
	if fs.NArg() < 3 {
		return fmt.Errorf("set: usage: set <keyspace> <key> <value-text>")
	}
	url := fmt.Sprintf("%s/keyspaces/%s/values/%s", *addr, fs.Arg(0), fs.Arg(1))
	req, err := http.NewRequest(http.MethodPut, url, strings.NewReader(fs.Arg(2)))
	if err != nil {
		return err
	}
	return doAndPrint(httpClient(*http3Flag), req)
}

func cmdDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	addr, http3Flag := clientFlags(fs)
	deleteType := fs.Bool("type", false, "delete the keyspace's registered type instead of a value")
	deleteData := fs.Bool("data", false, "with --type, also range-delete the keyspace's stored values")
	_ = fs.Parse(args)

	var url string
	if *deleteType {
		if fs.NArg() < 1 {
			return fmt.Errorf("delete --type: missing <keyspace>")
		}
		url = fmt.Sprintf("%s/keyspaces/%s?data=%t", *addr, fs.Arg(0), *deleteData)
	} else {
		if fs.NArg() < 2 {
			return fmt.Errorf("delete: usage: delete <keyspace> <key>")
		}
		url = fmt.Sprintf("%s/keyspaces/%s/values/%s", *addr, fs.Arg(0), fs.Arg(1))
	}
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	return doAndPrint(httpClient(*http3Flag), req)
}

func cmdListTypes(args []string) error {
	fs := flag.NewFlagSet("list-types", flag.ExitOnError)
	addr, http3Flag := clientFlags(fs)
	_ = fs.Parse(args)
	req, err := http.NewRequest(http.MethodGet, *addr+"/keyspaces", nil)
	if err != nil {
		return err
	}
	return doAndPrint(httpClient(*http3Flag), req)
}

func cmdListKeys(args []string) error {
	fs := flag.NewFlagSet("list-keys", flag.ExitOnError)
	addr, http3Flag := clientFlags(fs)
	prefix := fs.String("prefix", "", "filter keys by this prefix")
	start := fs.String("start", "", "inclusive scan start")
	end := fs.String("end", "", "exclusive scan end")
	limit := fs.String("limit", "", "maximum keys considered")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("list-keys: missing <keyspace>")
	}
	url := fmt.Sprintf("%s/keyspaces/%s/values?prefix=%s&start=%s&end=%s&limit=%s",
		*addr, fs.Arg(0), *prefix, *start, *end, *limit)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return doAndPrint(httpClient(*http3Flag), req)
}

func doAndPrint(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file (defaults used if omitted)")
	addr := fs.String("addr", "", "listen address, overriding config's http_addr")
	useHTTP3 := fs.Bool("http3", false, "serve over HTTP/3 (QUIC) instead of plain HTTP")
	watchDir := fs.String("watch", "", "watch this directory for IDL file writes and auto-register")
	certFile := fs.String("cert", "", "TLS certificate (omit with --key for a generated dev cert)")
	keyFile := fs.String("key", "", "TLS private key (omit with --cert for a generated dev cert)")
	_ = fs.Parse(args)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}

	limits := codec.Limits{MaxListElements: cfg.MaxListElements, MaxMemoryBytes: cfg.MaxMemoryBytes, MaxFlagCount: cfg.MaxFlagCount}
	s := store.New(engine.NewMemEngine(), witlang.IDLParser{}, witlang.ValueCodec{}, limits, cfg.EffectiveListLimit)
	h := httpapi.Handler(s, witlang.ValueCodec{}, slog.Default())

	if *watchDir != "" {
		w, err := watch.New(s, cfg.IDLGlob, slog.Default())
		if err != nil {
			return err
		}
		if err := w.Add(*watchDir); err != nil {
			return err
		}
		go func() {
			if err := w.Run(context.Background()); err != nil {
				slog.Error("watch loop exited", "error", err)
			}
		}()
	}

	if *useHTTP3 {
		var tlsCfg *tls.Config
		switch {
		case *certFile != "" && *keyFile != "":
			loaded, err := transport.LoadTLSConfig(*certFile, *keyFile)
			if err != nil {
				return err
			}
			tlsCfg = loaded
		case *certFile == "" && *keyFile == "":
			generated, err := transport.GenerateSelfSignedTLS([]string{"localhost", "127.0.0.1"}, 24*time.Hour)
			if err != nil {
				return err
			}
			tlsCfg = generated
			slog.Warn("serve --http3: no --cert/--key given, using a generated self-signed certificate (dev only)")
		default:
			return fmt.Errorf("serve --http3: --cert and --key must be given together")
		}
		srv := transport.NewHTTP3Server(cfg.HTTPAddr, tlsCfg, h)
		realAddr, err := srv.Start()
		if err != nil {
			return err
		}
		slog.Info("serving HTTP/3", "addr", realAddr)
		return <-srv.Error()
	}

	slog.Info("serving HTTP", "addr", cfg.HTTPAddr)
	return http.ListenAndServe(cfg.HTTPAddr, h)
}
