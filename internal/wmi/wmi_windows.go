//go:build windows

package wmi

import (
	"context"
	"fmt"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// queryWindows executes a WMI query through COM/OLE.
func queryWindows(ctx context.Context, namespace, query string) ([]QueryResult, error) {
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		oleErr, ok := err.(*ole.OleError)
		// S_FALSE means COM was already initialized, which is fine
		if !ok || oleErr.Code() != 0x00000001 {
			return nil, fmt.Errorf("COM initialization failed: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return nil, fmt.Errorf("create WMI locator: %w", err)
	}
	defer unknown.Release()

	locator, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("get IDispatch: %w", err)
	}
	defer locator.Release()

	serviceRaw, err := oleutil.CallMethod(locator, "ConnectServer", ".", namespace)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", namespace, err)
	}
	service := serviceRaw.ToIDispatch()
	defer service.Release()

	resultRaw, err := oleutil.CallMethod(service, "ExecQuery", query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	result := resultRaw.ToIDispatch()
	defer result.Release()

	countRaw, err := oleutil.GetProperty(result, "Count")
	if err != nil {
		return nil, fmt.Errorf("get result count: %w", err)
	}
	count := int(countRaw.Val)

	results := make([]QueryResult, 0, count)
	for i := 0; i < count; i++ {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		itemRaw, err := oleutil.CallMethod(result, "ItemIndex", i)
		if err != nil {
			continue
		}
		item := itemRaw.ToIDispatch()

		qr, err := readProperties(item)
		item.Release()
		if err != nil {
			continue
		}
		results = append(results, qr)
	}

	return results, nil
}

func readProperties(item *ole.IDispatch) (QueryResult, error) {
	propsRaw, err := oleutil.GetProperty(item, "Properties_")
	if err != nil {
		return nil, err
	}
	props := propsRaw.ToIDispatch()
	defer props.Release()

	propCountRaw, err := oleutil.GetProperty(props, "Count")
	if err != nil {
		return nil, err
	}
	propCount := int(propCountRaw.Val)

	qr := make(QueryResult)
	for j := 0; j < propCount; j++ {
		propRaw, err := oleutil.CallMethod(props, "ItemIndex", j)
		if err != nil {
			continue
		}
		prop := propRaw.ToIDispatch()

		nameRaw, err := oleutil.GetProperty(prop, "Name")
		if err != nil {
			prop.Release()
			continue
		}
		name := nameRaw.ToString()

		valRaw, err := oleutil.GetProperty(prop, "Value")
		if err != nil {
			prop.Release()
			continue
		}

		var val interface{}
		switch valRaw.VT {
		case ole.VT_NULL, ole.VT_EMPTY:
			val = nil
		case ole.VT_BOOL:
			val = valRaw.Val != 0
		case ole.VT_I4, ole.VT_INT:
			val = int32(valRaw.Val)
		case ole.VT_UI4, ole.VT_UINT:
			val = uint32(valRaw.Val)
		case ole.VT_BSTR:
			val = valRaw.ToString()
		default:
			val = valRaw.Value()
		}

		qr[name] = val
		prop.Release()
	}

	return qr, nil
}
