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
Package tenant implements the multi-tenant data-isolation layer of the
AI Farm backend. Every registered account owns a logically separate
MongoDB database; this package routes each authenticated request to a
ready connection handle for that database.

Two pieces compose the layer:

  - Resolver computes the stable per-tenant database name from the
    caller's identity. An explicit name stored on the user's profile
    wins; otherwise the name is derived as DBPrefix + user id. Either
    way the result is normalized so both paths agree on one name.

  - Registry caches connection handles keyed by database name. The
    first request for a tenant dials the cluster and applies the static
    collection schema; concurrent requests arriving during setup await
    the same in-flight attempt instead of dialing again. A failed
    attempt is forgotten so the next request retries from scratch.

Route handlers call Resolver.Resolve followed by Registry.Acquire once
per request, before executing any domain query.
*/
package tenant
