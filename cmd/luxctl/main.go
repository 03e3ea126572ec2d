// Command "luxctl" queries a running luxpipe server.
//
// Usage:
//
//	luxctl [<flags>] <cmd> [<args>...]
//
// Flags:
//
//	-s, --server=addr    address of the luxpipe gRPC port [default: "localhost:50051"]
//	    --since=dur      history window ending now [default: 1h]
//	    --timeout=dur    RPC deadline [default: 5s]
//	    --tls-cert=path  client certificate for mTLS
//	    --tls-key=path   client private key for mTLS
//	    --tls-ca=path    CA certificate for mTLS
//	-v, --verbose        enable debug logging
//
// Commands:
//
//	help                   list available commands
//	current <channel>      show the live value of a channel
//	history <channel>      list history entries and statistics
//	record <channel> <lux> add a history entry by hand
//	health [<channel>]     check service or channel health
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	getopt "github.com/pborman/getopt/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/quentinrf/luxpipe/internal/adapters/display"
	"github.com/quentinrf/luxpipe/internal/domain"
	"github.com/quentinrf/luxpipe/pkg/luxapi"
	"github.com/quentinrf/luxpipe/pkg/tlsconfig"
)

const helpText = `luxctl [<flags>] <cmd> [<arg>...]
Commands available:
	help
	current <channel>
	history <channel>
	record <channel> <lux>
	health [<channel>]
`

var (
	flagServer  string        = "localhost:50051"
	flagSince   time.Duration = time.Hour
	flagTimeout time.Duration = 5 * time.Second
	flagTLSCert string
	flagTLSKey  string
	flagTLSCA   string
	flagVerbose bool
)

func init() {
	getopt.SetParameters("<cmd> [<arg>...]")

	getopt.FlagLong(&flagServer, "server", 's', "address of the luxpipe gRPC port")
	getopt.FlagLong(&flagSince, "since", 0, "history window ending now")
	getopt.FlagLong(&flagTimeout, "timeout", 0, "RPC deadline")
	getopt.FlagLong(&flagTLSCert, "tls-cert", 0, "client certificate for mTLS")
	getopt.FlagLong(&flagTLSKey, "tls-key", 0, "client private key for mTLS")
	getopt.FlagLong(&flagTLSCA, "tls-ca", 0, "CA certificate for mTLS")
	getopt.FlagLong(&flagVerbose, "verbose", 'v', "enable debug logging")
}

func main() {
	getopt.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if flagVerbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var cmd string
	if getopt.NArgs() == 0 {
		cmd = "help"
	} else {
		cmd = getopt.Arg(0)
	}

	if cmd == "help" {
		fmt.Print(helpText + "\n")
		os.Exit(0)
	}

	minArgs, maxArgs := 2, 2
	switch cmd {
	case "record":
		minArgs, maxArgs = 3, 3
	case "health":
		minArgs = 1
	}

	if n := getopt.NArgs(); n < minArgs || n > maxArgs {
		log.Logger.Fatal().
			Int("expect", maxArgs).
			Int("actual", n).
			Msg("wrong number of arguments")
	}

	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()

	cc, err := dial()
	if err != nil {
		log.Logger.Fatal().
			Str("server", flagServer).
			Err(err).
			Msg("--server: failed to Dial")
	}
	defer func() {
		_ = cc.Close()
	}()

	client := luxapi.NewLightServiceClient(cc)
	health := grpc_health_v1.NewHealthClient(cc)

	event := log.Logger.Info()

	switch cmd {
	case "current":
		channel := getopt.Arg(1)
		resp, err := client.GetCurrentLight(ctx, &luxapi.GetCurrentLightRequest{Channel: channel})
		if err != nil {
			rpcFailed("GetCurrentLight", err)
		}
		event = event.
			Str("channel", channel).
			Bool("available", resp.Available)
		if resp.Reading != nil {
			event = event.
				Float64("lux", resp.Reading.Lux).
				Str("category", resp.Reading.Category).
				Time("updated", time.Unix(resp.Reading.Timestamp, 0))
		}
		if resp.Message != "" {
			event = event.Str("message", resp.Message)
		}

	case "history":
		channel := getopt.Arg(1)
		end := time.Now()
		start := end.Add(-flagSince)
		resp, err := client.GetHistory(ctx, &luxapi.GetHistoryRequest{
			Channel:   channel,
			StartTime: start.Unix(),
			EndTime:   end.Unix() + 1,
		})
		if err != nil {
			rpcFailed("GetHistory", err)
		}
		for _, r := range resp.Readings {
			fmt.Printf("%s\t%s\t%s\n",
				time.Unix(r.Timestamp, 0).Format(time.RFC3339),
				strconv.FormatFloat(r.Lux, 'f', -1, 64),
				r.Category)
		}
		event = event.
			Str("channel", channel).
			Int("count", len(resp.Readings)).
			Float64("average", resp.AverageLux).
			Float64("min", resp.MinLux).
			Float64("max", resp.MaxLux)

	case "record":
		channel := getopt.Arg(1)
		lux, err := strconv.ParseFloat(getopt.Arg(2), 64)
		if err != nil {
			log.Logger.Fatal().
				Str("input", getopt.Arg(2)).
				Err(err).
				Msg("invalid lux value")
		}
		resp, err := client.RecordReading(ctx, &luxapi.RecordReadingRequest{Channel: channel, Lux: lux})
		if err != nil {
			rpcFailed("RecordReading", err)
		}
		event = event.
			Str("channel", channel).
			Int64("id", resp.Reading.Id).
			Str("category", resp.Reading.Category)

	case "health":
		service := ""
		if getopt.NArgs() == 2 {
			service = display.HealthService(domain.ChannelID(getopt.Arg(1)))
		}
		resp, err := health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			log.Logger.Fatal().
				Str("rpcService", "grpc.health.v1.Health").
				Str("rpcMethod", "Check").
				Err(err).
				Msg("RPC failed")
		}
		event = event.Str("status", resp.Status.String())

	default:
		log.Logger.Fatal().
			Str("cmd", cmd).
			Msg("unknown command")
	}

	event.Msg("OK")
}

func dial() (*grpc.ClientConn, error) {
	creds := insecure.NewCredentials()
	if flagTLSCert != "" {
		tlsCfg, err := tlsconfig.LoadClientTLS(flagTLSCert, flagTLSKey, flagTLSCA)
		if err != nil {
			return nil, err
		}
		creds = credentials.NewTLS(tlsCfg)
	}
	return grpc.NewClient(flagServer, grpc.WithTransportCredentials(creds))
}

func rpcFailed(method string, err error) {
	log.Logger.Fatal().
		Str("rpcService", luxapi.ServiceName).
		Str("rpcMethod", method).
		Err(err).
		Msg("RPC failed")
}
