package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aschepis/backscratcher/llmshim/config"
	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/aschepis/backscratcher/llmshim/llm/anthropic"
	"github.com/aschepis/backscratcher/llmshim/llm/openai"
	"github.com/aschepis/backscratcher/llmshim/logger"
	"github.com/aschepis/backscratcher/llmshim/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag  *string
	logFileFlag *string
	prettyFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	logger     zerolog.Logger
	configErr  error

	registry        *llm.ModelRegistry
	metricsRegistry *prometheus.Registry
	collector       *metrics.Collector
}

func newCommandContext(configFlag, logFileFlag *string, prettyFlag *bool) *commandContext {
	registry := llm.NewModelRegistry()
	openai.Register(registry)
	anthropic.Register(registry)

	metricsRegistry := prometheus.NewRegistry()
	return &commandContext{
		configFlag:      configFlag,
		logFileFlag:     logFileFlag,
		prettyFlag:      prettyFlag,
		registry:        registry,
		metricsRegistry: metricsRegistry,
		collector:       metrics.NewCollectorWithRegistry(metricsRegistry),
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		log, err := logger.InitWithOptions(strings.TrimSpace(*c.logFileFlag), *c.prettyFlag)
		if err != nil {
			c.configErr = err
			return
		}
		c.logger = log

		c.configPath = config.GetConfigPath()
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			c.configPath = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(c.configPath)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger.Debug().Str("path", c.configPath).Msg("Configuration loaded")
	})
	return c.config, c.configErr
}

// buildModel creates the registered model name, or the configured default
// model when name is empty.
func (c *commandContext) buildModel(name string) (llm.Model, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = cfg.DefaultModel
	}

	provider, ok := c.registry.Provider(name)
	if !ok {
		return nil, fmt.Errorf("model %q is not registered (known: %v)", name, c.registry.Names())
	}
	spec, err := cfg.ModelSpec(name, provider, c.logger, c.collector)
	if err != nil {
		return nil, err
	}
	return c.registry.Build(spec)
}

func (c *commandContext) writeMetrics(w io.Writer) error {
	families, err := c.metricsRegistry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
