// Copyright 2025 AI Farm
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package logger provides structured JSON logging with per-tenant context
for the AI Farm backend.

Each entry is one JSON object on stdout, easily consumable by
CloudWatch, ELK, or any other log aggregation system, and carries:

  - Timestamp (RFC3339Nano)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name
  - Instance ID and container name
  - Tenant database name (multi-tenant isolation)
  - Request ID (request correlation)
  - Custom fields

Usage:

	log := logger.New("farmd")
	log.Info("AI_FARM_user_u123", reqID, "animal created", map[string]interface{}{
	    "animal_id": id,
	})
*/
package logger
