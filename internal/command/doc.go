// Package command defines the outbound command schema sent to the vehicle controller.
//
// Commands are a closed set:
//   - "update" carries exactly one feature (thruster levels, light levels, holds, modes)
//   - "update_lights" carries the main/aux light switches
//
// Commands are validated before they are encoded. The wire form is one JSON object
// per message with the "command" discriminator first.
package command
