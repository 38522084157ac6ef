// Package webhook receives platform webhooks and turns them into tenant-scoped
// cleanup.
//
// # Request Flow
//
//  1. POST arrives at /webhooks (topic from X-Shopify-Topic) or at a per-topic
//     route such as /webhooks/app/uninstalled
//  2. Body read up to max_body_size; larger bodies fail verification
//  3. X-Shopify-Hmac-Sha256 checked against base64(HMAC-SHA256(secret, body))
//     with a constant-time comparison; the current and previous app secrets
//     are both accepted
//  4. Shop domain taken from X-Shopify-Shop-Domain, falling back to the payload
//  5. Dispatcher runs the topic's cleanup steps, each with its own timeout
//  6. Responder maps the result to a status code and a short text body
//  7. The outcome is logged and counted
//
// # Responses
//
//   - 401: signature missing or wrong, or body unreadable. No cleanup runs.
//   - 200: everything else, including malformed payloads, unsupported topics
//     and failed cleanup steps. Failed steps appear only in logs and metrics.
//   - 500: only for failed cleanup steps when retry_on_partial_failure is set.
//
// # Topics
//
//   - app/uninstalled: delete sessions, mark the shop uninstalled
//   - shop/redact: delete sessions, share links and the shop record
//   - customers/redact, customers/data_request: confirm no customer data is held
package webhook
