/*
Package config provides flat key/value configuration for Burrow.

Configuration is a single map of string keys to string values with typed
accessors for the kinds the caches consume: ints, int64s, booleans, time
intervals with ms/s/m/h/d suffixes, int pairs, lists of ints, int64s,
strings and intervals, and key=value maps.

	cfg := config.FromMap(map[string]string{
		"cacheName":          "sessions",
		"mainQueueCacheTime": "2s",
		"readThreadPoolSize": "2,8",
	})

	name, _ := cfg.String("cacheName")
	residency, _ := cfg.Duration("mainQueueCacheTime")
	min, max, _ := cfg.IntPair("readThreadPoolSize")

Values may also be loaded from a flat YAML file and kept current with a
filesystem watcher:

	cfg, _ := config.LoadFile("burrow.yaml")
	w, _ := config.NewWatcher("burrow.yaml", cfg)
	w.Start()
	defer w.Stop()

Individual Set calls are atomic per key; readers observe each key's latest
value. No multi-key transactional view is provided.
*/
package config
