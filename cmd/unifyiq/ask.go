package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/unifyiq/unifyiq/internal/api"
	"github.com/unifyiq/unifyiq/internal/models"
)

var (
	askFormat  string
	askJSON    bool
	remoteAddr string
	askTimeout time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question and print the result",
	Long: `Answer one natural-language question.

Without --remote the dataset is loaded in-process from the configured sources.
With --remote the question is sent to a running "unifyiq serve".`,
	Example: `  unifyiq ask "top 5 accounts by ARR in EMEA"
  unifyiq ask --format csv "accounts renewing in the next 30 days"
  unifyiq ask --remote localhost:50051 "group by region"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
		defer cancel()

		req := models.QueryRequest{Question: strings.Join(args, " "), Format: askFormat}
		var (
			data []byte
			err  error
		)
		if remoteAddr != "" {
			data, err = askRemote(ctx, req)
		} else {
			data, err = askLocal(ctx, req)
		}
		if err != nil {
			return err
		}

		if askJSON {
			return writeJSON(cmd.OutOrStdout(), data)
		}
		view, err := viewFromJSON(data)
		if err != nil {
			return err
		}
		return renderView(cmd.OutOrStdout(), view)
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Rebuild the dataset and print its statistics",
	Long: `Rebuild the unified dataset. With --remote the running service reloads;
otherwise the sources are loaded locally, which is useful to check a configuration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
		defer cancel()

		var data []byte
		if remoteAddr != "" {
			conn, err := dial(remoteAddr)
			if err != nil {
				return err
			}
			defer conn.Close()
			resp, err := api.NewInsightServiceClient(conn).Reload(ctx, &emptypb.Empty{})
			if err != nil {
				return err
			}
			if data, err = protojson.Marshal(resp); err != nil {
				return err
			}
		} else {
			app, err := buildApplication(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()
			stats, err := app.queries.Reload(ctx)
			if err != nil {
				return err
			}
			if data, err = json.Marshal(stats); err != nil {
				return err
			}
		}
		return writeJSON(cmd.OutOrStdout(), data)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{askCmd, reloadCmd} {
		cmd.Flags().StringVar(&remoteAddr, "remote", "", "Address of a running unifyiq gRPC service")
		cmd.Flags().DurationVar(&askTimeout, "timeout", time.Minute, "Overall deadline")
	}
	askCmd.Flags().StringVarP(&askFormat, "format", "f", "", "Result format: json or csv")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the raw response envelope")
}

func askLocal(ctx context.Context, req models.QueryRequest) ([]byte, error) {
	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer app.Close()

	if _, err := app.queries.Reload(ctx); err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	env, err := app.queries.Ask(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Debug("answered locally", slog.String("query_id", env.Meta.QueryID))
	return json.Marshal(env)
}

func askRemote(ctx context.Context, req models.QueryRequest) ([]byte, error) {
	conn, err := dial(remoteAddr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	in, err := api.ToProtoQueryRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := api.NewInsightServiceClient(conn).Query(ctx, in)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(resp)
}

func dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}
