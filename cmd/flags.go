////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

// This is a comprehensive list of CLI flag name constants. Organized by
// subcommand, with root level CLI flags at the top of the list. Pulling flags
// using Viper should use the constants defined here.
const (
	//////////////// Root flags ///////////////////////////////////////////////

	// Config flags
	configFlag       = "config"
	redisFlag        = "redis"
	paramsFlag       = "params"
	remoteParamsFlag = "remoteParams"
	healthParamsFlag = "healthParams"

	// Storage flags
	sessionFlag  = "session"
	passwordFlag = "password"
	cacheFlag    = "cache"
	noCacheFlag  = "noCache"

	// Log flags
	logLevelFlag = "logLevel"
	logFlag      = "log"

	// Misc
	metricsFlag = "metrics"
	waitFlag    = "wait"

	///////////////// Login subcommand flags //////////////////////////////////
	displayNameFlag = "name"

	///////////////// Chat subcommand flags ///////////////////////////////////
	olderFlag = "older"

	///////////////// Direct subcommand flags /////////////////////////////////
	messageFlag = "message"

	///////////////// Typing subcommand flags /////////////////////////////////
	typingDurationFlag = "duration"
)
