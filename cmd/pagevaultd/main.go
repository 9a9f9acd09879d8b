// Command pagevaultd is a demo/bench server exposing the storage stack
// over a line-oriented TCP protocol: PUT <key> <value>, GET <key>,
// DELETE <key>, STATS. Keys are uint32, values are fixed-width strings,
// hashed into an on-disk extendible hash table backed by a disk-scheduled
// buffer pool (SPEC_FULL.md §3's demo wiring).
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arnavsood/pagevault/internal/logging"
	"github.com/arnavsood/pagevault/internal/telemetry"
	"github.com/arnavsood/pagevault/storage/buffer"
	"github.com/arnavsood/pagevault/storage/dbstore"
	"github.com/arnavsood/pagevault/storage/disk"
	"github.com/arnavsood/pagevault/storage/hash"
)

const (
	serverAddr = "localhost:9191"

	dataDir  = "data"
	dbFile   = "data/pagevault.db"
	pageSize = dbstore.DefaultPageSize

	poolSize        = 64
	replacerK       = dbstore.DefaultReplacerK
	valueWidth      = 128
	headerMaxDepth  = 4
	directoryMaxDep = 6

	prometheusPort = 9464
)

type server struct {
	table *hash.Table[uint32, string]
	bpm   *buffer.PoolManager
	log   *zap.Logger
	mu    sync.RWMutex
}

func main() {
	log, err := logging.New(logging.Config{Level: "info", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	tel, shutdownTel, err := telemetry.New(telemetry.Config{
		Enabled:          true,
		ServiceName:      "pagevaultd",
		PrometheusPort:   prometheusPort,
		TraceSampleRatio: 0.1,
	})
	if err != nil {
		log.Fatal("telemetry init failed", zap.Error(err))
	}
	defer shutdownTel(context.Background())

	metrics, err := telemetry.NewStorageMetrics(tel.Meter)
	if err != nil {
		log.Fatal("metrics init failed", zap.Error(err))
	}

	srv, closeFn, err := newServer(log, metrics)
	if err != nil {
		log.Fatal("server init failed", zap.Error(err))
	}
	defer closeFn()

	listener, err := net.Listen("tcp", serverAddr)
	if err != nil {
		log.Fatal("listen failed", zap.Error(err))
	}
	defer listener.Close()

	log.Info("pagevaultd listening", zap.String("addr", serverAddr))
	log.Info("commands: PUT <key> <value>, GET <key>, DELETE <key>, STATS")

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Error("accept failed", zap.Error(err))
			continue
		}
		go srv.handleConnection(conn)
	}
}

func newServer(log *zap.Logger, metrics *telemetry.StorageMetrics) (*server, func(), error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating data dir: %w", err)
	}

	diskMgr, err := disk.NewManager(dbFile, pageSize, log, metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("opening disk manager: %w", err)
	}
	scheduler := disk.NewScheduler(diskMgr, log)
	replacer := buffer.NewLRUKReplacer(poolSize, replacerK, log)
	bpm := buffer.NewPoolManager(poolSize, pageSize, scheduler, replacer, log, metrics)

	table, err := hash.NewTable(bpm, hash.Config[uint32, string]{
		HashFn:            hash.Uint32HashFunc,
		Comparator:        hash.Uint32Comparator,
		KeyCodec:          hash.Uint32Codec,
		ValueCodec:        hash.FixedStringCodec(valueWidth),
		HeaderMaxDepth:    headerMaxDepth,
		DirectoryMaxDepth: directoryMaxDep,
	}, log, metrics)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing hash table: %w", err)
	}

	closeFn := func() {
		log.Info("shutting down pagevaultd")
		if err := bpm.FlushAllPages(); err != nil {
			log.Warn("flush on shutdown failed", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := scheduler.Close(ctx); err != nil {
			log.Warn("scheduler close failed", zap.Error(err))
		}
		if err := diskMgr.Close(); err != nil {
			log.Warn("disk manager close failed", zap.Error(err))
		}
	}

	return &server{table: table, bpm: bpm, log: log}, closeFn, nil
}

func (s *server) handleConnection(conn net.Conn) {
	defer conn.Close()
	s.log.Info("client connected", zap.String("addr", conn.RemoteAddr().String()))

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				s.log.Warn("read failed", zap.Error(err))
			}
			return
		}
		reply := s.handleLine(strings.TrimSpace(line))
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			s.log.Warn("write failed", zap.Error(err))
			return
		}
	}
}

func (s *server) handleLine(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "ERROR empty command"
	}

	switch strings.ToUpper(fields[0]) {
	case "PUT":
		if len(fields) < 3 {
			return "ERROR PUT requires key and value"
		}
		key, err := parseKey(fields[1])
		if err != nil {
			return "ERROR " + err.Error()
		}
		value := strings.Join(fields[2:], " ")
		s.mu.Lock()
		ok, err := s.table.Insert(key, value)
		s.mu.Unlock()
		if err != nil {
			return "ERROR " + err.Error()
		}
		if !ok {
			return "ERROR key already exists"
		}
		return "OK"

	case "GET":
		if len(fields) < 2 {
			return "ERROR GET requires a key"
		}
		key, err := parseKey(fields[1])
		if err != nil {
			return "ERROR " + err.Error()
		}
		s.mu.RLock()
		vals, err := s.table.Lookup(key)
		s.mu.RUnlock()
		if err != nil {
			return "ERROR " + err.Error()
		}
		if len(vals) == 0 {
			return "NOT_FOUND"
		}
		return "OK " + vals[0]

	case "DELETE":
		if len(fields) < 2 {
			return "ERROR DELETE requires a key"
		}
		key, err := parseKey(fields[1])
		if err != nil {
			return "ERROR " + err.Error()
		}
		s.mu.Lock()
		removed, err := s.table.Remove(key)
		s.mu.Unlock()
		if err != nil {
			return "ERROR " + err.Error()
		}
		if !removed {
			return "NOT_FOUND"
		}
		return "OK"

	case "STATS":
		return "OK header_page=" + strconv.Itoa(int(s.table.HeaderPageID()))

	default:
		return "ERROR unknown command: " + fields[0]
	}
}

func parseKey(raw string) (uint32, error) {
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: must be a uint32", raw)
	}
	return uint32(n), nil
}
