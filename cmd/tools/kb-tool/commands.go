package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"inquiry-core/internal/common/config"
	"inquiry-core/internal/common/database"
	"inquiry-core/internal/common/logger"
	knowledgegraph "inquiry-core/internal/knowledge/knowledge-graph"
	"inquiry-core/internal/models"
	"inquiry-core/pkg/kbase"
)

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a knowledge base against the schema and reference rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.path == "" {
				// Remote and embedded documents are validated while loading.
				if _, err := kbase.Load(cmd.Context(), opts.source()); err != nil {
					return err
				}
				return opts.output(cmd, map[string]interface{}{"valid": true, "source": opts.source().String()})
			}

			data, err := os.ReadFile(opts.path)
			if err != nil {
				return fmt.Errorf("failed to read knowledge base: %w", err)
			}
			var doc kbase.Document
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse knowledge base: %w", err)
			}
			result, err := kbase.Validate(&doc)
			if err != nil {
				return err
			}
			if err := opts.output(cmd, result); err != nil {
				return err
			}
			if !result.Valid {
				return fmt.Errorf("knowledge base validation failed: %s", result.Summary())
			}
			return nil
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count entities and relations by type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := kbase.Load(cmd.Context(), opts.source())
			if err != nil {
				return err
			}
			return opts.output(cmd, doc.Stats())
		},
	}
}

func newResolveCmd(opts *options) *cobra.Command {
	var entityType string
	cmd := &cobra.Command{
		Use:   "resolve TEXT",
		Short: "Resolve free text to a knowledge base entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handler, err := loadHandler(cmd.Context(), opts)
			if err != nil {
				return err
			}
			res, err := handler.Resolver().Resolve(cmd.Context(), args[0], entityType)
			if err != nil {
				return err
			}
			return opts.output(cmd, res)
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "", "Restrict resolution to one entity type (e.g. Symptom)")
	return cmd
}

func newMapCmd(opts *options) *cobra.Command {
	var (
		age          int
		gender       string
		pregnant     bool
		constitution string
	)
	cmd := &cobra.Command{
		Use:   "map SYMPTOM...",
		Short: "Map symptoms to syndromes, remedies and treatment principles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handler, err := loadHandler(cmd.Context(), opts)
			if err != nil {
				return err
			}
			input := &knowledgegraph.Input{
				Patient: &models.PatientContext{
					Age:          age,
					Gender:       gender,
					Pregnant:     pregnant,
					Constitution: constitution,
				},
			}
			for _, name := range args {
				input.Symptoms = append(input.Symptoms, models.Symptom{Name: name})
			}
			out, err := handler.Execute(cmd.Context(), input)
			if err != nil {
				return err
			}
			return opts.output(cmd, out)
		},
	}
	cmd.Flags().IntVar(&age, "age", 0, "Patient age")
	cmd.Flags().StringVar(&gender, "gender", "", "Patient gender (male, female, other)")
	cmd.Flags().BoolVar(&pregnant, "pregnant", false, "Patient is pregnant")
	cmd.Flags().StringVar(&constitution, "constitution", "", "Declared constitution entity id")
	return cmd
}

func newAddAliasCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add-alias ENTITY_ID ALIAS...",
		Short: "Add aliases to an entity and rewrite the knowledge base file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.path == "" {
				return fmt.Errorf("--kb is required for add-alias")
			}
			doc, err := kbase.LoadFile(opts.path)
			if err != nil {
				return err
			}

			id := args[0]
			found := false
			for i := range doc.Entities {
				if doc.Entities[i].ID != id {
					continue
				}
				found = true
				doc.Entities[i].Aliases = models.UnionStrings(doc.Entities[i].Aliases, trimAll(args[1:]))
				break
			}
			if !found {
				return fmt.Errorf("entity with ID %s not found", id)
			}

			if err := kbase.Save(opts.path, doc); err != nil {
				return err
			}
			return opts.output(cmd, map[string]interface{}{"updated": id, "path": opts.path})
		},
	}
}

func newIndexCmd(opts *options) *cobra.Command {
	var (
		esURL string
		index string
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Write every entity into an Elasticsearch index for remote resolution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if index == "" {
				return fmt.Errorf("--index is required")
			}
			doc, err := kbase.Load(cmd.Context(), opts.source())
			if err != nil {
				return err
			}
			es, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: esURL})
			if err != nil {
				return err
			}
			if err := es.Ping(cmd.Context()); err != nil {
				return err
			}
			created, err := es.EnsureIndex(cmd.Context(), index, knowledgegraph.EntityIndexMapping)
			if err != nil {
				return err
			}
			searcher := knowledgegraph.NewElasticSearcher(es.Client, index)
			if err := searcher.IndexEntities(cmd.Context(), doc.Entities); err != nil {
				return err
			}
			return opts.output(cmd, map[string]interface{}{
				"index":   index,
				"created": created,
				"indexed": len(doc.Entities),
			})
		},
	}
	cmd.Flags().StringVar(&esURL, "es-url", "http://localhost:9200", "Elasticsearch URL")
	cmd.Flags().StringVar(&index, "index", "", "Target index name")
	return cmd
}

func newPurgeCacheCmd(opts *options) *cobra.Command {
	var (
		addr     string
		password string
		prefixes []string
	)
	cmd := &cobra.Command{
		Use:   "purge-cache",
		Short: "Delete cached graph and diagnosis results from redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb, err := database.NewRedis(config.RedisConfig{Address: addr, Password: password})
			if err != nil {
				return err
			}
			defer rdb.Close()
			if err := rdb.Ping(cmd.Context()); err != nil {
				return err
			}

			deleted := make(map[string]int, len(prefixes))
			for _, prefix := range prefixes {
				n, err := rdb.Purge(cmd.Context(), prefix)
				if err != nil {
					return err
				}
				deleted[prefix] = n
			}
			return opts.output(cmd, map[string]interface{}{"deleted": deleted})
		},
	}
	cmd.Flags().StringVar(&addr, "redis-addr", "localhost:6379", "Redis address")
	cmd.Flags().StringVar(&password, "redis-password", "", "Redis password")
	cmd.Flags().StringSliceVar(&prefixes, "prefix", []string{"inquiry:kg:", "inquiry:dx:"}, "Key prefixes to delete")
	return cmd
}

func loadHandler(ctx context.Context, opts *options) (*knowledgegraph.Handler, error) {
	doc, err := kbase.Load(ctx, opts.source())
	if err != nil {
		return nil, err
	}
	graph, err := knowledgegraph.FromDocument(doc)
	if err != nil {
		return nil, err
	}
	return knowledgegraph.NewHandler(nil, graph, nil, nil, logger.NewNoOpLogger()), nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
