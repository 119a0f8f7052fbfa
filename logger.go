/*
Copyright 2018 Iguazio Systems Ltd.

Licensed under the Apache License, Version 2.0 (the "License") with
an addition restriction as set forth herein. You may not use this
file except in compliance with the License. You may obtain a copy of
the License at http://www.apache.org/licenses/LICENSE-2.0.

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
implied. See the License for the specific language governing
permissions and limitations under the License.

In addition, you may not use the software for any purposes that are
illegal under applicable law, and the grant of the foregoing license
under the Apache 2.0 license is conditioned upon your compliance with
such restriction.
*/

package cubes

import (
	"fmt"
	"strings"

	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
)

// NewLogger returns a new logger
func NewLogger(level string) (logger.Logger, error) {
	logLevel, err := logLevel(level)
	if err != nil {
		return nil, err
	}

	log, err := nucliozap.NewNuclioZapCmd("cubes", logLevel)
	if err != nil {
		return nil, err
	}

	return log, nil
}

func logLevel(level string) (nucliozap.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return nucliozap.DebugLevel, nil
	case "info", "":
		return nucliozap.InfoLevel, nil
	case "warn", "warning":
		return nucliozap.WarnLevel, nil
	case "error":
		return nucliozap.ErrorLevel, nil
	}

	return nucliozap.InfoLevel, fmt.Errorf("unknown log level - %q", level)
}
