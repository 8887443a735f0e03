package conformance

// Status is an i32-backed Thrift enum.
type Status int32

const (
	StatusPending Status = 0
	StatusActive  Status = 1
	StatusClosed  Status = 2
)

// String returns the enum name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusActive:
		return "ACTIVE"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Point is a simple 2D point.
type Point struct {
	X float64 `thrift:"x,1"`
	Y float64 `thrift:"y,2"`
}

// BoundingBox contains two nested Points and a label.
type BoundingBox struct {
	TopLeft     Point  `thrift:"top_left,1"`
	BottomRight Point  `thrift:"bottom_right,2"`
	Label       string `thrift:"label,3"`
}

// AllTypes covers every Go type the struct mapper supports.
type AllTypes struct {
	StrField       string            `thrift:"str_field,1"`
	BytesField     []byte            `thrift:"bytes_field,2"`
	IntField       int64             `thrift:"int_field,3"`
	FloatField     float64           `thrift:"float_field,4"`
	BoolField      bool              `thrift:"bool_field,5"`
	ListOfInt      []int64           `thrift:"list_of_int,6"`
	ListOfStr      []string          `thrift:"list_of_str,7"`
	DictField      map[string]int64  `thrift:"dict_field,8"`
	EnumField      Status            `thrift:"enum_field,9"`
	NestedPoint    Point             `thrift:"nested_point,10"`
	OptionalStr    *string           `thrift:"optional_str,11,optional"`
	OptionalInt    *int64            `thrift:"optional_int,12,optional"`
	OptionalNested *Point            `thrift:"optional_nested,13,optional"`
	ListOfNested   []Point           `thrift:"list_of_nested,14"`
	SmallInt       int16             `thrift:"small_int,15"`
	TinyInt        int8              `thrift:"tiny_int,16"`
	NestedList     [][]int64         `thrift:"nested_list,17"`
	DictStrStr     map[string]string `thrift:"dict_str_str,18"`
	DictIntStr     map[int32]string  `thrift:"dict_int_str,19"`
}
