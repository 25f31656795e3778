// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Core.
//
// Zaparoo Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Core.  If not, see <http://www.gnu.org/licenses/>.

package config

import "time"

var AppVersion = "DEVELOPMENT"

const (
	AppName           = "gamemanager"
	CfgEnv            = "GAMEMANAGER_CFG"
	CfgFile           = "config.toml"
	AuthFile          = "credentials.toml"
	LogFile           = "core.log"
	GamelistsDir      = "gamelists"
	TaskLogsDir       = "task_logs"
	DBDir             = "db"
	SchemaVersion     = 1
	APIRequestTimeout = 30 * time.Second
)
