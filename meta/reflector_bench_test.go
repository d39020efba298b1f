package meta

import (
	"testing"
	"unsafe"
)

func BenchmarkDescribeCached(b *testing.B) {
	if _, err := Of[User](); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Of[User]()
	}
}

func BenchmarkSetInvoker(b *testing.B) {
	r := MustOf[User]()
	u := &User{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Set(u, "firstName", "John")
	}
}

func BenchmarkDirectSet(b *testing.B) {
	r := MustOf[User]()
	u := &User{}
	p, _ := r.Property("firstName")
	ptr := unsafe.Pointer(u)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.DirectSet(ptr, "John")
	}
}
