package main

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/imgfleet/convoy/pkg/schema"
	schemav1 "github.com/imgfleet/convoy/pkg/schema/v1"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the convoy.yaml JSON schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := jsonschema.Reflect(&schemav1.ConvoyConfig{})
			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()
			undo := zap.ReplaceGlobals(logger)
			defer undo()

			config, err := resolveConfig(args)
			if err != nil {
				return err
			}
			data, err := schema.EffectiveJSON(config)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
	c.Flags().StringVarP(&configPath, "c", "c", "convoy.yaml", "config file path, or - for stdin")
	return c
}
