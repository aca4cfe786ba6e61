/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package variants

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrOutOfRange is wrapped by every failed range check.
var ErrOutOfRange = errors.New("value out of range")

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrOutOfRange, s)
	}
	return v, nil
}

func number(s string) error {
	_, err := parseNumber(s)
	return err
}

func atLeast(min float64) func(string) error {
	return func(s string) error {
		v, err := parseNumber(s)
		if err != nil {
			return err
		}
		if v < min {
			return fmt.Errorf("%w: %s < %s", ErrOutOfRange, s, strconv.FormatFloat(min, 'f', -1, 64))
		}
		return nil
	}
}

func integerAtLeast(min int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%w: %q is not an integer", ErrOutOfRange, s)
		}
		if v < min {
			return fmt.Errorf("%w: %d < %d", ErrOutOfRange, v, min)
		}
		return nil
	}
}

func oneOf(allowed ...string) func(string) error {
	return func(s string) error {
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return fmt.Errorf("%w: %q not in %v", ErrOutOfRange, s, allowed)
	}
}

var comparison = oneOf("==", "!=", "<", "<=", ">", ">=")
