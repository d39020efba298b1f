package meta

import (
	"bytes"
	"io"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =========================================================================
// Test Data Structures
// =========================================================================

type Address struct {
	City string
	Zip  string `reflector:"postal_code"`
}

type Timestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID        uint64
	FirstName string
	LastName  string `reflector:"alias:surname|family_name"`
	Email     string `reflector:"email_address"`
	Notes     string `reflector:"-"`
	secret    string
	Address
	Timestamps
}

func (u *User) GetDisplayName() string { return u.FirstName + " " + u.LastName }
func (u *User) SetEmail(e string)      { u.Email = strings.ToLower(e) }
func (u User) GetActive() bool         { return u.ID != 0 }
func (u User) IsActive() bool          { return u.ID != 0 }

type Product struct {
	SKU      string `reflector:"gen:nanoid"`
	Name     string
	Price    float64
	Internal string `reflector:"readonly"`
}

// conflicted has getter forms with incompatible result types.
type conflicted struct{}

func (c *conflicted) GetValue() string { return "s" }
func (c *conflicted) IsValue() int     { return 0 }

// streamHolder has getter forms where one result type is an interface the
// other implements.
type streamHolder struct{ buf *bytes.Buffer }

func (h *streamHolder) GetStream() io.Reader    { return h.buf }
func (h *streamHolder) IsStream() *bytes.Buffer { return h.buf }

type Left struct{ Code int }
type Right struct{ Code int }

// merged promotes Code from two embeds at the same depth.
type merged struct {
	Left
	Right
	Name string
}

type lazyOwner struct {
	ID uint64
	*Timestamps
}

// =========================================================================
// Introspection
// =========================================================================

func TestDescribe(t *testing.T) {
	tests := []struct {
		name        string
		inputType   reflect.Type
		expectError bool
	}{
		{name: "ValidStruct", inputType: reflect.TypeOf(User{})},
		{name: "ValidStructPtr", inputType: reflect.TypeOf(&User{})},
		{name: "InvalidTypeString", inputType: reflect.TypeOf("string"), expectError: true},
		{name: "InvalidTypeInt", inputType: reflect.TypeOf(42), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Describe(tt.inputType)
			if tt.expectError {
				assert.ErrorIs(t, err, ErrNotStruct)
				assert.Nil(t, r)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, r)
			assert.Equal(t, reflect.TypeOf(User{}), r.Type())
			assert.Equal(t, "users", r.Collection())
		})
	}
}

func TestDescribeCaching(t *testing.T) {
	ClearCache()

	r1, err := Of[User]()
	require.NoError(t, err)
	r2, err := Of[User]()
	require.NoError(t, err)
	assert.True(t, r1 == r2, "expected the same cached instance")

	// Pointer types normalize onto the same entry.
	r3, err := Describe(reflect.TypeOf(&User{}))
	require.NoError(t, err)
	assert.True(t, r1 == r3)
}

func TestDescribeConcurrency(t *testing.T) {
	const numGoroutines = 10
	const numIterations = 10

	ClearCache()

	var wg sync.WaitGroup
	results := make(chan *Reflector, numGoroutines*numIterations)
	errs := make(chan error, numGoroutines*numIterations)
	startBarrier := make(chan struct{})

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-startBarrier
			for j := 0; j < numIterations; j++ {
				r, err := Of[User]()
				if err != nil {
					errs <- err
					return
				}
				results <- r
			}
		}()
	}

	close(startBarrier)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Errorf("concurrent describe error: %v", err)
	}

	var first *Reflector
	for r := range results {
		if first == nil {
			first = r
			continue
		}
		assert.True(t, first == r, "all callers must observe one instance")
	}
}

// =========================================================================
// Property resolution
// =========================================================================

func TestPropertyTables(t *testing.T) {
	r := MustOf[User]()

	// Field-backed properties.
	assert.True(t, r.HasGetter("firstName"))
	assert.True(t, r.HasSetter("firstName"))

	// Skipped and unexported members never become properties.
	assert.False(t, r.HasGetter("notes"))
	assert.False(t, r.HasGetter("secret"))

	// Method-only property: readable, not writable.
	assert.True(t, r.HasGetter("displayName"))
	assert.False(t, r.HasSetter("displayName"))

	// Embedded fields promote with their own tags intact.
	assert.True(t, r.HasGetter("city"))
	zip, ok := r.Property("zip")
	require.True(t, ok)
	assert.Equal(t, "postal_code", zip.External)

	// Setter claimed by method, getter filled by the field.
	email, ok := r.Property("email")
	require.True(t, ok)
	assert.Equal(t, "SetEmail", email.SetterMethod)
	assert.Equal(t, "", email.GetterMethod)
	assert.True(t, email.FromField)

	gt, err := r.GetterType("displayName")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(""), gt)

	_, err = r.GetterType("nonexistent")
	assert.ErrorIs(t, err, ErrNoGetter)
	_, err = r.Setter("displayName")
	assert.ErrorIs(t, err, ErrNoSetter)
}

func TestBooleanGetterPreference(t *testing.T) {
	r := MustOf[User]()

	p, ok := r.Property("active")
	require.True(t, ok)
	assert.Equal(t, "IsActive", p.GetterMethod)

	u := &User{ID: 7}
	v, err := r.Get(u, "active")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestAmbiguousGetterForms(t *testing.T) {
	r := MustOf[conflicted]()

	// The conflict is recorded, not dropped: the name stays readable and
	// the error surfaces on use.
	assert.True(t, r.HasGetter("value"))
	_, err := r.Get(&conflicted{}, "value")
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestCovariantGetterForms(t *testing.T) {
	r := MustOf[streamHolder]()

	gt, err := r.GetterType("stream")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(&bytes.Buffer{}), gt, "concrete result type wins over the interface form")

	buf := bytes.NewBufferString("payload")
	v, err := r.Get(&streamHolder{buf: buf}, "stream")
	require.NoError(t, err)
	assert.Equal(t, buf, v)
}

func TestSameDepthEmbeddingAmbiguity(t *testing.T) {
	r := MustOf[merged]()

	assert.True(t, r.HasGetter("name"))
	assert.True(t, r.HasGetter("code"))

	_, err := r.Get(&merged{}, "code")
	require.ErrorIs(t, err, ErrAmbiguous)
	assert.Contains(t, err.Error(), "Left")
	assert.Contains(t, err.Error(), "Right")

	err = r.Set(&merged{}, "code", 1)
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestFindProperty(t *testing.T) {
	r := MustOf[User]()

	name, ok := r.FindProperty("firstName")
	require.True(t, ok)
	assert.Equal(t, "firstName", name)

	// Case-insensitive resolution.
	name, ok = r.FindProperty("FIRSTNAME")
	require.True(t, ok)
	assert.Equal(t, "firstName", name)

	// Aliases from tags.
	name, ok = r.FindProperty("surname")
	require.True(t, ok)
	assert.Equal(t, "lastName", name)
	name, ok = r.FindProperty("FAMILY_NAME")
	require.True(t, ok)
	assert.Equal(t, "lastName", name)

	_, ok = r.FindProperty("nonexistent")
	assert.False(t, ok)
}

func TestContextBoundedCacheEviction(t *testing.T) {
	var evicted []reflect.Type
	ctx := New(
		WithCacheSize(2),
		WithEvictionCallback(func(t reflect.Type, _ *Reflector) {
			evicted = append(evicted, t)
		}),
	)

	_, err := ctx.Describe(reflect.TypeOf(User{}))
	require.NoError(t, err)
	_, err = ctx.Describe(reflect.TypeOf(Product{}))
	require.NoError(t, err)
	assert.Equal(t, 2, ctx.CacheLen())

	// A third type pushes the least recently used entry out.
	_, err = ctx.Describe(reflect.TypeOf(Address{}))
	require.NoError(t, err)
	assert.Equal(t, 2, ctx.CacheLen())
	require.Len(t, evicted, 1)
	assert.Equal(t, reflect.TypeOf(User{}), evicted[0])

	// The evicted type rebuilds on demand.
	r, err := ctx.Describe(reflect.TypeOf(User{}))
	require.NoError(t, err)
	assert.True(t, r.HasGetter("firstName"))
	require.Len(t, evicted, 2)
}

func TestCaseSensitiveContext(t *testing.T) {
	ctx := New(WithCaseSensitive(true))
	r, err := ctx.Describe(reflect.TypeOf(User{}))
	require.NoError(t, err)

	_, ok := r.FindProperty("FIRSTNAME")
	assert.False(t, ok)
	_, ok = r.FindProperty("firstName")
	assert.True(t, ok)
	// Aliases still resolve exactly.
	_, ok = r.FindProperty("surname")
	assert.True(t, ok)
}

func TestReadableWritableNames(t *testing.T) {
	r := MustOf[Product]()

	assert.Contains(t, r.ReadableNames(), "internal")
	assert.NotContains(t, r.WritableNames(), "internal", "readonly fields expose no setter")
	assert.Contains(t, r.WritableNames(), "price")
	assert.True(t, slices.IsSorted(r.ReadableNames()))
}

// =========================================================================
// Invocation
// =========================================================================

func TestGetSet(t *testing.T) {
	r := MustOf[User]()
	u := &User{}

	require.NoError(t, r.Set(u, "firstName", "Ada"))
	assert.Equal(t, "Ada", u.FirstName)

	v, err := r.Get(u, "firstName")
	require.NoError(t, err)
	assert.Equal(t, "Ada", v)

	// Method-backed setter runs the method body.
	require.NoError(t, r.Set(u, "email", "Ada@Example.COM"))
	assert.Equal(t, "ada@example.com", u.Email)

	// Embedded field access through the promotion chain.
	require.NoError(t, r.Set(u, "city", "Lisbon"))
	assert.Equal(t, "Lisbon", u.Address.City)

	// Lookup misses are errors, not panics.
	err = r.Set(u, "nonexistent", 1)
	assert.ErrorIs(t, err, ErrNoSetter)
}

func TestSetAllocatesEmbeddedPointer(t *testing.T) {
	r := MustOf[lazyOwner]()
	o := &lazyOwner{}

	now := time.Now()
	require.NoError(t, r.Set(o, "createdAt", now))
	require.NotNil(t, o.Timestamps)
	assert.Equal(t, now, o.Timestamps.CreatedAt)

	// Reads through a nil embedded pointer fail instead of panicking.
	_, err := r.Get(&lazyOwner{}, "createdAt")
	assert.Error(t, err)

	// Offsets are unavailable across the pointer hop.
	p, ok := r.Property("createdAt")
	require.True(t, ok)
	assert.False(t, p.HasOffset)
	assert.Nil(t, p.DirectSet)
}

func TestSetCoercion(t *testing.T) {
	r := MustOf[User]()
	u := &User{}

	// Convertible numeric widths pass through.
	require.NoError(t, r.Set(u, "ID", int64(42)))
	assert.Equal(t, uint64(42), u.ID)

	// Pointers dereference one level.
	s := "Grace"
	require.NoError(t, r.Set(u, "firstName", &s))
	assert.Equal(t, "Grace", u.FirstName)

	// nil resets to the zero value.
	require.NoError(t, r.Set(u, "firstName", nil))
	assert.Equal(t, "", u.FirstName)

	// Incompatible values fail with a descriptive error.
	err := r.Set(u, "ID", "not a number")
	assert.Error(t, err)
}

func TestInvokerTargetValidation(t *testing.T) {
	r := MustOf[User]()

	_, err := r.Get(User{}, "firstName")
	assert.Error(t, err, "value targets are rejected")

	_, err = r.Get((*User)(nil), "firstName")
	assert.Error(t, err, "nil pointers are rejected")
}

// =========================================================================
// Direct setters
// =========================================================================

func TestDirectSet(t *testing.T) {
	r := MustOf[User]()
	u := &User{}

	p, ok := r.Property("firstName")
	require.True(t, ok)
	require.True(t, p.HasOffset)
	require.NotNil(t, p.DirectSet)

	p.DirectSet(unsafe.Pointer(u), "John")
	assert.Equal(t, "John", u.FirstName)

	// Embedded (non-pointer) fields keep a valid absolute offset.
	city, ok := r.Property("city")
	require.True(t, ok)
	require.True(t, city.HasOffset)
	city.DirectSet(unsafe.Pointer(u), "Oslo")
	assert.Equal(t, "Oslo", u.Address.City)
}

func TestDirectSetMemoryBounds(t *testing.T) {
	type bounded struct {
		Sentinel1 uint64
		Target    uint64
		Sentinel2 uint64
	}

	const (
		sentinel1Value = uint64(0xDEADBEEFCAFEBABE)
		sentinel2Value = uint64(0xFEEDFACEDEADC0DE)
		targetValue    = uint64(0x1234567890ABCDEF)
	)

	b := &bounded{Sentinel1: sentinel1Value, Sentinel2: sentinel2Value}

	r := MustOf[bounded]()
	p, ok := r.Property("target")
	require.True(t, ok)
	require.NotNil(t, p.DirectSet)

	p.DirectSet(unsafe.Pointer(b), targetValue)

	assert.Equal(t, sentinel1Value, b.Sentinel1, "Sentinel1 must be unchanged")
	assert.Equal(t, sentinel2Value, b.Sentinel2, "Sentinel2 must be unchanged")
	assert.Equal(t, targetValue, b.Target)
}

// =========================================================================
// Instantiation and generators
// =========================================================================

func TestNewPopulatesGeneratedFields(t *testing.T) {
	r := MustOf[Product]()

	v, err := r.New()
	require.NoError(t, err)
	p, ok := v.(*Product)
	require.True(t, ok)

	assert.Len(t, p.SKU, 21, "nanoid default size")
	assert.Zero(t, p.Price)

	v2, err := r.New()
	require.NoError(t, err)
	assert.NotEqual(t, p.SKU, v2.(*Product).SKU)
}

func TestUUIDGeneratorIntoStringField(t *testing.T) {
	type entity struct {
		ID string `reflector:"gen:uuid"`
	}

	r := MustOf[entity]()
	v, err := r.New()
	require.NoError(t, err)
	e := v.(*entity)
	assert.Len(t, e.ID, 36, "canonical UUID rendering")
}

// =========================================================================
// Row scanning
// =========================================================================

type fakeRows struct {
	cols []string
	vals []any
}

func (f *fakeRows) Columns() ([]string, error) { return f.cols, nil }

func (f *fakeRows) Scan(dest ...any) error {
	for i := range dest {
		if p, ok := dest[i].(*any); ok {
			*p = f.vals[i]
		}
	}
	return nil
}

func TestScanRow(t *testing.T) {
	r := MustOf[User]()
	u := &User{}

	rows := &fakeRows{
		cols: []string{"id", "first_name", "surname", "email_address", "city", "unmapped"},
		vals: []any{int64(12), "Ada", "Lovelace", "Ada@Example.com", "Lisbon", "ignored"},
	}

	require.NoError(t, r.ScanRow(u, rows))
	assert.Equal(t, uint64(12), u.ID)
	assert.Equal(t, "Ada", u.FirstName)
	assert.Equal(t, "Lovelace", u.LastName, "alias columns bind through FindProperty")
	assert.Equal(t, "ada@example.com", u.Email, "method setter applies on scan")
	assert.Equal(t, "Lisbon", u.Address.City)
}
