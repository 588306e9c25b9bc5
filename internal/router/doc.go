// Package router decodes inbound vehicle messages and fans them out to handlers.
//
// The vehicle pushes two message kinds over the console channel:
//   - camera: {"type":"camera","camera":"camera1","frame":"<base64 jpeg>"}
//   - sensor: {"type":"sensor","data":{"depth":..,"pressure":..,"temperature":..,"battery":..}}
//
// Controller acknowledgements and unknown types are counted and dropped.
// GrowableBuffer is the ordered queue used wherever events must be delivered
// in the order they were produced.
package router
