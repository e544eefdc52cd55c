// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package share uploads a session to a share service and returns the public
// URL. The payload is a projection of the session: by default system
// messages are excluded, since they usually carry instructions the author
// did not intend to publish.
package share
