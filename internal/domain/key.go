package domain

// RecordKey 是去重用的复合主键：(规范化活动名, 规范时间或 none)。
//
// 所有 unparseable 日期共享同一个 none（HasAt=false, AtMinute=0），
// 因此同名活动里“无日期”的记录每批最多保留一条。
type RecordKey struct {
	Name     string
	HasAt    bool
	AtMinute int64
}

// KeyOf 计算记录的 RecordKey。
func KeyOf(s Schema, r Record) RecordKey {
	return MakeKey(r.Get(s.EventName), r.DateTime)
}

// MakeKey 由原始活动名与日期构造 RecordKey。
func MakeKey(eventName string, at ParsedDate) RecordKey {
	k := RecordKey{Name: CleanEventName(eventName)}
	if t, ok := at.Time(); ok {
		k.HasAt = true
		k.AtMinute = t.Unix() / 60
	}
	return k
}

// KeySet 是 RecordKey 集合。
type KeySet map[RecordKey]struct{}

func (s KeySet) Has(k RecordKey) bool {
	_, ok := s[k]
	return ok
}

func (s KeySet) Add(k RecordKey) { s[k] = struct{}{} }
