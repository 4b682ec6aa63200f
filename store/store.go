// Package store 提供 core.Store 的实现，用作查找表的共享来源。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
// 示例：
//
//	var s core.Store = store.NewMemoryStore()
//	provider := feature.NewStoreLookupProvider(s, feature.DefaultLookupKeys(""))
package store
