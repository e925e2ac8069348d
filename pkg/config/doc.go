// Copyright 2025 walteh LLC
//
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
Package config loads the datamover configuration.

🎯 Purpose:
- Describes where items are moved from and to
- Configures the rsync and hard link copiers
- Fills in defaults and rejects impossible combinations

🔄 Flow:
1. Picks a parser by file extension (.yaml/.yml, .json, .hcl)
2. Decodes the file, rejecting unknown fields
3. Validates and applies defaults

📝 Example (YAML):

	source: /data/incoming
	destination: archive:/data/store
	parallel: 2
	manual_intervention: /data/manual
	rsync:
	  ssh_executable: ssh
	  timeout: 2h
	ignore_patterns:
	  - "tmp/**"

📝 Example (HCL):

	source      = "${env.HOME}/incoming"
	destination = "/data/store"

	hard_link {
	  enabled = true
	}

	markers {
	  enabled = true
	}

⚡ Rules:
- source must be local; destination may be "host:dir"
- hard linking and markers need a local destination
- markers default to enabled for local destinations
- manual_intervention must be local and outside the source
*/
package config
