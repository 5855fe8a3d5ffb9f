package livetree

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/commands"
	"github.com/stretchr/testify/require"
)

func benchmarkStdMapInsert(factor int, b *testing.B) {
	m := map[string]interface{}{}
	for n := 0; n < factor*b.N; n++ {
		m[fmt.Sprint(n)] = n
	}
}

func BenchmarkStdMapInsert1(b *testing.B)   { benchmarkStdMapInsert(1, b) }
func BenchmarkStdMapInsert10(b *testing.B)  { benchmarkStdMapInsert(10, b) }
func BenchmarkStdMapInsert100(b *testing.B) { benchmarkStdMapInsert(100, b) }

func benchmarkStoreSet(factor int, b *testing.B) {
	s, err := Open(ctx, nil)
	require.NoError(b, err)
	defer s.Close(ctx)
	ref := s.Ref("bench")
	for n := 0; n < factor*b.N; n++ {
		s.Set(ctx, ref.Child(fmt.Sprint(n%1000)), Number(n))
	}
}

func BenchmarkStoreSet1(b *testing.B)   { benchmarkStoreSet(1, b) }
func BenchmarkStoreSet10(b *testing.B)  { benchmarkStoreSet(10, b) }
func BenchmarkStoreSet100(b *testing.B) { benchmarkStoreSet(100, b) }

func benchmarkStoreGet(factor int, b *testing.B) {
	s, err := Open(ctx, nil)
	require.NoError(b, err)
	defer s.Close(ctx)
	b.StopTimer()
	for n := 0; n < 1000; n++ {
		s.Set(ctx, s.Ref(fmt.Sprintf("bench/%d/value", n)), Number(n))
	}
	b.StartTimer()
	for n := 0; n < factor*b.N; n++ {
		s.Get(s.Ref(fmt.Sprintf("bench/%d/value", n%1000)))
	}
}

func BenchmarkStoreGet1(b *testing.B)   { benchmarkStoreGet(1, b) }
func BenchmarkStoreGet10(b *testing.B)  { benchmarkStoreGet(10, b) }
func BenchmarkStoreGet100(b *testing.B) { benchmarkStoreGet(100, b) }

func benchmarkStorePushWithSubscribers(subscribers int, b *testing.B) {
	s, err := Open(ctx, nil)
	require.NoError(b, err)
	defer s.Close(ctx)
	ref := s.Ref("messages")
	for i := 0; i < subscribers; i++ {
		defer s.Subscribe(ref, func(Value) {})()
	}
	for n := 0; n < b.N; n++ {
		s.Push(ctx, ref, Number(n))
	}
}

func BenchmarkStorePush0(b *testing.B)   { benchmarkStorePushWithSubscribers(0, b) }
func BenchmarkStorePush10(b *testing.B)  { benchmarkStorePushWithSubscribers(10, b) }
func BenchmarkStorePush100(b *testing.B) { benchmarkStorePushWithSubscribers(100, b) }

func BenchmarkExerciser(b *testing.B) {
	parameters := gopter.DefaultTestParametersWithSeed(1593228262585360000)
	parameters.MaxSize = 256
	parameters.MinSuccessfulTests = b.N
	properties := gopter.NewProperties(parameters)
	properties.Property("store exerciser", commands.Prop(storeCommands))
	out := bytes.NewBuffer(nil)
	reporter := gopter.NewFormatedReporter(false, 98, out)
	require.True(b, properties.Run(reporter))
}
