/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/valpere/perekladach/internal/orchestrator"
	"github.com/valpere/perekladach/internal/registry"
	"github.com/valpere/perekladach/internal/store"
)

// providersConfig returns the "providers" section of the config file as the
// per-provider maps the resolver expects. Keys are lower-cased by viper.
func providersConfig() map[string]map[string]any {
	raw := viper.GetStringMap("providers")
	out := make(map[string]map[string]any, len(raw))
	for name, v := range raw {
		slice, err := cast.ToStringMapE(v)
		if err != nil {
			zap.L().Warn("ignoring provider config", zap.String("provider", name), zap.Error(err))
			continue
		}
		out[name] = slice
	}
	return out
}

func buildOrchestrator() (*orchestrator.Orchestrator, *registry.Registry) {
	reg := registry.Default()
	orch := orchestrator.New(reg, orchestrator.Config{
		Timeout: viper.GetDuration("dispatch.timeout"),
	}, zap.L())
	return orch, reg
}

func openHistory() (*store.Store, error) {
	path := viper.GetString("history.db")
	if path == "" {
		return nil, fmt.Errorf("history database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
