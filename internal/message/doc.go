// Package message parses chat commands.
//
// Supported commands:
//
//	/register
//	/loan <amount> <@people> [description]
//	/pay <amount> <@people> [description]
//	/balance
//	/history [n]
//	/simplify
//	/help
//
// A command may carry a bot suffix ("/loan@splitbot"), which is ignored.
// Amounts use "." or "," as decimal separator, allow at most two fractional
// digits and are converted to integer minor units.
package message
