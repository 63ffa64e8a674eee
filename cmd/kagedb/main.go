// Command kagedb runs a minimal interactive shell over the storage
// engine: a disk-backed extendible hash index on top of the buffer
// pool. It exists to exercise the full stack end to end; the index is
// initialized fresh in the database file on every start.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/kagedb/kagedb/config"
	"github.com/kagedb/kagedb/core/buffer"
	"github.com/kagedb/kagedb/core/indexing/exthash"
	diskmanager "github.com/kagedb/kagedb/core/storage/disk_manager"
	internaltelemetry "github.com/kagedb/kagedb/internal/telemetry"
	"github.com/kagedb/kagedb/pkg/logger"
	"github.com/kagedb/kagedb/pkg/telemetry"
)

const (
	keyWidth   = 32
	valueWidth = 128
)

func main() {
	configPath := flag.String("config", "", "path to yaml config (defaults apply if empty)")
	dbPath := flag.String("db", "kage.db", "path to the database file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	tel, telShutdown, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		log.Fatal("init telemetry", zap.Error(err))
	}
	defer telShutdown(context.Background())

	metrics, err := internaltelemetry.NewStorageMetrics(tel.Meter)
	if err != nil {
		log.Fatal("init storage metrics", zap.Error(err))
	}

	disk, err := diskmanager.NewFileDiskManager(*dbPath, cfg.Storage.PageSize, log)
	if err != nil {
		log.Fatal("open database file", zap.String("path", *dbPath), zap.Error(err))
	}
	bpm := buffer.NewBufferPoolManager(cfg.Storage.PoolSize, cfg.Storage.ReplacerK, disk, log, metrics)
	defer func() {
		bpm.Close()
		if err := disk.Close(); err != nil {
			log.Error("close database file", zap.Error(err))
		}
	}()

	table, err := exthash.New[string, string]("kv", bpm,
		exthash.FixedStringCodec{N: keyWidth}, exthash.FixedStringCodec{N: valueWidth},
		exthash.CompareString, nil,
		cfg.Storage.PageSize, exthash.Options{
			HeaderMaxDepth:    cfg.Storage.HeaderMaxDepth,
			DirectoryMaxDepth: cfg.Storage.DirectoryMaxDepth,
			BucketMaxSize:     cfg.Storage.BucketMaxSize,
		}, log)
	if err != nil {
		log.Fatal("create hash index", zap.Error(err))
	}

	fmt.Println("kagedb shell. Commands: PUT <key> <value> | GET <key> | DEL <key> | FLUSH | EXIT")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToUpper(fields[0])
		switch cmd {
		case "PUT":
			if len(fields) < 3 {
				fmt.Println("usage: PUT <key> <value>")
				continue
			}
			key, value := fields[1], strings.Join(fields[2:], " ")
			if len(key) > keyWidth || len(value) > valueWidth {
				fmt.Printf("key limited to %d bytes, value to %d\n", keyWidth, valueWidth)
				continue
			}
			if err := table.Insert(key, value); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Println("ok")
		case "GET":
			if len(fields) != 2 {
				fmt.Println("usage: GET <key>")
				continue
			}
			vals, err := table.GetValue(fields[1])
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			if len(vals) == 0 {
				fmt.Println("(not found)")
				continue
			}
			fmt.Println(vals[0])
		case "DEL":
			if len(fields) != 2 {
				fmt.Println("usage: DEL <key>")
				continue
			}
			if err := table.Remove(fields[1]); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Println("ok")
		case "FLUSH":
			bpm.FlushAllPages()
			fmt.Println("ok")
		case "EXIT", "QUIT":
			return
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}
